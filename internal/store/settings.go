package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetUserSettings returns the stored settings for a user, or nil when the
// user has never saved any.
func (s *Store) GetUserSettings(ctx context.Context, userID string) (*UserSettings, error) {
	var settings UserSettings
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&settings).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("get user settings", err)
	}
	return &settings, nil
}

// UpsertUserSettings creates or replaces the settings row for a user
func (s *Store) UpsertUserSettings(ctx context.Context, settings *UserSettings) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"instruction_template", "render_key", "updated_at"}),
		}).
		Create(settings).Error
	if err != nil {
		return storeError("upsert user settings", err)
	}
	return nil
}
