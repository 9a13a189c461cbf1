package types

import (
	"time"

	"github.com/google/uuid"
)

// SegmentMetadata describes one captured segment as produced by the segment
// builder and consumed by the processing workers.
type SegmentMetadata struct {
	SegmentID       int       `json:"segment_id"`
	FPS             int       `json:"fps"`
	Resolution      [2]int    `json:"resolution"`
	FrameCount      int       `json:"frame_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	HasAudio        bool      `json:"has_audio"`
	CapturedAt      time.Time `json:"captured_at"`
	UserID          uuid.UUID `json:"user_id"`
}

const SegmentJobStatusPending = "pending"

// SegmentJob is the queue entry for one segment awaiting processing.
type SegmentJob struct {
	VideoPath  string          `json:"video_path"`
	Metadata   SegmentMetadata `json:"metadata"`
	EnqueuedAt float64         `json:"enqueued_at"`
	Status     string          `json:"status"`
}
