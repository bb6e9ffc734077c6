package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"atsforge/internal/errors"

	"gorm.io/gorm"
)

// CreateSourceDocument stores a new document and marks it current for its
// type, demoting the previous current document in the same transaction.
func (s *Store) CreateSourceDocument(ctx context.Context, doc *SourceDocument) error {
	if doc.Type != DocumentTypeResume && doc.Type != DocumentTypeCoverLetter {
		return errors.NewBadRequest(errors.ErrCodeInvalidDocumentType,
			fmt.Sprintf("document type must be %q or %q", DocumentTypeResume, DocumentTypeCoverLetter))
	}

	doc.IsCurrent = true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SourceDocument{}).
			Where("user_id = ? AND type = ? AND is_current = ?", doc.UserID, doc.Type, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Create(doc).Error
	})
	if err != nil {
		return storeError("create source document", err)
	}
	return nil
}

// GetCurrentDocument returns the current document of the given type for a user
func (s *Store) GetCurrentDocument(ctx context.Context, userID, docType string) (*SourceDocument, error) {
	var doc SourceDocument
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_current = ?", userID, docType, true).
		First(&doc).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFound(errors.ErrCodeNoCurrentDocument,
				fmt.Sprintf("no current %s found", docType))
		}
		return nil, storeError("get current document", err)
	}
	return &doc, nil
}

// ListSourceDocuments returns all documents for a user, newest first
func (s *Store) ListSourceDocuments(ctx context.Context, userID string) ([]SourceDocument, error) {
	var docs []SourceDocument
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, storeError("list source documents", err)
	}
	return docs, nil
}
