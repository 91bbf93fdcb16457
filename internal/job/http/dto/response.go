package dto

import (
	"time"

	"github.com/google/uuid"
)

// JobResponse is the API representation of a job.
type JobResponse struct {
	ID                 uuid.UUID `json:"id"`
	Status             string    `json:"status"`
	Language           string    `json:"language,omitempty"`
	ModelType          string    `json:"model_type,omitempty"`
	Speakers           string    `json:"speakers,omitempty"`
	Filename           string    `json:"filename"`
	OutputFormat       string    `json:"output_format"`
	Error              string    `json:"error,omitempty"`
	TranscribedSeconds int64     `json:"transcribed_seconds"`
	Encrypted          bool      `json:"encrypted"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	DeletionDate       time.Time `json:"deletion_date"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}
