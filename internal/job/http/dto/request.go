// Package dto defines request and response shapes for the job HTTP API.
package dto

import (
	validation "github.com/jellydator/validation"
)

// UpdateJobRequest carries a partial job update. Absent fields are left
// untouched; workers use it to drive the status machine and report results.
type UpdateJobRequest struct {
	Status             *string `json:"status"`
	Error              *string `json:"error"`
	TranscribedSeconds *int64  `json:"transcribed_seconds"`
	OutputFormat       *string `json:"output_format"`
}

// Validate validates the update request fields.
func (r UpdateJobRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.In(
			"uploading", "uploaded", "pending", "in_progress", "completed", "failed",
		)),
		validation.Field(&r.OutputFormat, validation.In("txt", "srt", "csv")),
		validation.Field(&r.TranscribedSeconds, validation.Min(int64(0))),
	)
}
