package models

import "time"

// ProcessingResult is the per-image outcome of a pipeline run. Every image
// produces one, success or degraded, so downstream rendering and the
// history store always have something to record.
type ProcessingResult struct {
	RunID          string           `json:"run_id"`
	ImagePath      string           `json:"image_path"`
	ImageName      string           `json:"image_name"`
	Quality        ImageQuality     `json:"quality"`
	Orientation    ImageOrientation `json:"orientation"`
	TextQuality    TextQuality      `json:"text_quality,omitempty"`
	ExtractedText  string           `json:"extracted_text,omitempty"`
	Classification *Classification  `json:"classification,omitempty"`
	NotePath       string           `json:"note_path,omitempty"`
	Merged         bool             `json:"merged,omitempty"`
	// Skipped is set for input defects (empty text, unreadable image):
	// logged, not an error, pipeline continues.
	Skipped        bool          `json:"skipped,omitempty"`
	Degraded       bool          `json:"degraded,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	ProcessingTime time.Duration `json:"processing_time_ns,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
