package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Video is the relational record for one processed segment. VideoID is minted
// by the worker before any external call; the ingest provider's opaque id is
// stored alongside it and never used as a cross-store key.
type Video struct {
	VideoID           uuid.UUID  `gorm:"type:uuid;primaryKey;column:video_id" json:"video_id"`
	UserID            uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Timestamp         time.Time  `json:"timestamp"`
	Datetime          time.Time  `json:"datetime"`
	DetailedSummary   string     `json:"detailed_summary"`
	S3Link            *string    `gorm:"column:s3_link" json:"s3_link"`
	FileSize          int64      `json:"file_size"`
	ProcessedAt       time.Time  `json:"processed_at"`
	TwelveLabsVideoID *string    `gorm:"column:twelvelabs_video_id" json:"twelvelabs_video_id"`
	VectorStatus      *string    `json:"vector_status"`
	VectorUpdatedAt   *time.Time `json:"vector_updated_at"`
	VectorID          *uuid.UUID `gorm:"type:uuid" json:"vector_id"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (Video) TableName() string { return "videos" }

// Vector lifecycle states written onto the video row by the embedding finalizer.
const (
	VectorStatusPending    = "pending"
	VectorStatusProcessing = "processing"
	VectorStatusCompleted  = "completed"
	VectorStatusFailed     = "failed"
)

type Highlight struct {
	HighlightID uuid.UUID `gorm:"type:uuid;primaryKey;column:highlight_id" json:"highlight_id"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	VideoID     uuid.UUID `gorm:"type:uuid" json:"video_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Highlight) TableName() string { return "highlights" }
