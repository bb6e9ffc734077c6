package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document types accepted for source documents
const (
	DocumentTypeResume      = "resume"
	DocumentTypeCoverLetter = "cover_letter"
)

// SourceDocument is a user-owned resume or cover letter source. At most one
// document per (user, type) carries IsCurrent.
type SourceDocument struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"index;index:idx_user_type_current" json:"user_id"`
	Type      string    `gorm:"not null;index:idx_user_type_current" json:"type"`
	Content   string    `gorm:"not null" json:"content"`
	IsCurrent bool      `gorm:"not null;default:false;index:idx_user_type_current" json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *SourceDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// JobDescription is a posting a user wants a document optimized against
type JobDescription struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"index" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Company     string    `json:"company"`
	Description string    `gorm:"not null" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (j *JobDescription) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// UserSettings holds per-user pipeline configuration. InstructionTemplate
// overrides the service default when non-empty; RenderKey is the stored
// credential for the render service.
type UserSettings struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              string    `gorm:"uniqueIndex" json:"user_id"`
	InstructionTemplate string    `json:"instruction_template"`
	RenderKey           string    `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (s *UserSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Optimization is one completed pipeline run. Rows are only written for
// fully successful runs.
type Optimization struct {
	ID                   string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               string    `gorm:"index" json:"user_id"`
	JobDescriptionID     string    `gorm:"index;not null" json:"job_description_id"`
	SourceDocumentID     string    `gorm:"not null" json:"source_document_id"`
	OptimizedContent     string    `gorm:"not null" json:"optimized_content"`
	OptimizedCoverLetter *string   `json:"optimized_cover_letter,omitempty"`
	ATSScore             int       `gorm:"not null" json:"ats_score"`
	Suggestions          string    `gorm:"not null" json:"suggestions"`
	Provider             string    `json:"provider"`
	Model                string    `json:"model"`
	CreatedAt            time.Time `json:"created_at"`
}

func (o *Optimization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
