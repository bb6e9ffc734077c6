package store

import (
	"context"
	stderrors "errors"

	"atsforge/internal/errors"

	"gorm.io/gorm"
)

// CreateJobDescription stores a new job description
func (s *Store) CreateJobDescription(ctx context.Context, job *JobDescription) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return storeError("create job description", err)
	}
	return nil
}

// GetJobDescription returns a job description owned by the given user
func (s *Store) GetJobDescription(ctx context.Context, userID, jobID string) (*JobDescription, error) {
	var job JobDescription
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", jobID, userID).
		First(&job).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound(errors.ErrCodeJobNotFound,
				"job description not found").WithContext("job_description_id", jobID)
		}
		return nil, storeError("get job description", err)
	}
	return &job, nil
}

// ListJobDescriptions returns all job descriptions for a user, newest first
func (s *Store) ListJobDescriptions(ctx context.Context, userID string) ([]JobDescription, error) {
	var jobs []JobDescription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, storeError("list job descriptions", err)
	}
	return jobs, nil
}
