package store

import (
	"context"
	stderrors "errors"

	"atsforge/internal/errors"

	"gorm.io/gorm"
)

// CreateOptimization stores a completed optimization result
func (s *Store) CreateOptimization(ctx context.Context, opt *Optimization) error {
	if err := s.db.WithContext(ctx).Create(opt).Error; err != nil {
		return storeError("create optimization", err)
	}
	return nil
}

// GetOptimization returns an optimization owned by the given user
func (s *Store) GetOptimization(ctx context.Context, userID, optimizationID string) (*Optimization, error) {
	var opt Optimization
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", optimizationID, userID).
		First(&opt).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound(errors.ErrCodeOptimizationNotFound,
				"optimization not found").WithContext("optimization_id", optimizationID)
		}
		return nil, storeError("get optimization", err)
	}
	return &opt, nil
}

// ListOptimizations returns all optimizations for a user, newest first
func (s *Store) ListOptimizations(ctx context.Context, userID string) ([]Optimization, error) {
	var opts []Optimization
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&opts).Error
	if err != nil {
		return nil, storeError("list optimizations", err)
	}
	return opts, nil
}
