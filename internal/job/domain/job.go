// Package domain defines the transcription job domain entities and types.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/errors"
)

// Status represents the lifecycle state of a transcription job.
type Status string

const (
	// StatusUploading is set while the media upload is in flight.
	StatusUploading Status = "uploading"
	// StatusUploaded means the media is fully stored and the job can be queued.
	StatusUploaded Status = "uploaded"
	// StatusPending means the job is queued for a transcription worker.
	StatusPending Status = "pending"
	// StatusInProgress means a worker has claimed the job.
	StatusInProgress Status = "in_progress"
	// StatusCompleted means the transcript result has been stored.
	StatusCompleted Status = "completed"
	// StatusFailed means the job failed; Error holds the reason.
	StatusFailed Status = "failed"
)

// validTransitions encodes the job status machine.
var validTransitions = map[Status][]Status{
	StatusUploading:  {StatusUploaded, StatusFailed},
	StatusUploaded:   {StatusPending, StatusFailed},
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether a job may move from its current status to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// OutputFormat represents the transcript output format.
type OutputFormat string

const (
	OutputFormatTXT OutputFormat = "txt"
	OutputFormatSRT OutputFormat = "srt"
	OutputFormatCSV OutputFormat = "csv"
)

// IsValid reports whether f is a known output format.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatTXT, OutputFormatSRT, OutputFormatCSV:
		return true
	}
	return false
}

// ContainerVersion identifies the on-disk container format of a job's media.
// The version is carried here, out of band: readers never sniff the file.
type ContainerVersion int

const (
	// ContainerVersionNone marks plaintext media.
	ContainerVersionNone ContainerVersion = 0
	// ContainerVersionLegacy marks headerless containers written before
	// the size header was introduced.
	ContainerVersionLegacy ContainerVersion = 1
	// ContainerVersionSized marks containers with the declared-size header.
	ContainerVersionSized ContainerVersion = 2
)

// EncryptedSuffix is appended to blob keys of encrypted containers.
const EncryptedSuffix = ".enc"

// RetentionPeriod is how long jobs are kept before scheduled deletion.
const RetentionPeriod = 7 * 24 * time.Hour

// Job represents a transcription job.
type Job struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Status             Status
	Language           string
	ModelType          string
	Speakers           string
	Filename           string
	OutputFormat       OutputFormat
	Error              string
	TranscribedSeconds int64

	// Encrypted is true when the media (and transcript) are stored as
	// encrypted containers under the user's public key.
	Encrypted        bool
	ContainerVersion ContainerVersion

	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletionDate time.Time
}

// UserObjectPrefix returns the blob prefix holding all of a user's objects.
func UserObjectPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("users/%s/", userID)
}

// MediaObjectKey returns the blob key of the job's uploaded media.
func (j *Job) MediaObjectKey() string {
	key := fmt.Sprintf("users/%s/%s%s", j.UserID, j.ID, mediaExt)
	if j.Encrypted {
		key += EncryptedSuffix
	}
	return key
}

// ResultObjectKey returns the blob key of the job's transcript result.
func (j *Job) ResultObjectKey() string {
	key := fmt.Sprintf("users/%s/%s.%s", j.UserID, j.ID, j.OutputFormat)
	if j.Encrypted {
		key += EncryptedSuffix
	}
	return key
}

// ResultFilename returns the download filename for the transcript,
// derived from the uploaded media filename.
func (j *Job) ResultFilename() string {
	base := j.Filename
	if base == "" {
		base = j.ID.String()
	}
	return fmt.Sprintf("%s.%s", base, j.OutputFormat)
}

const mediaExt = ".mp4"

// Domain-specific errors for job operations.
var (
	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.Wrap(errors.ErrNotFound, "job not found")

	// ErrJobAlreadyExists indicates a job with the same ID already exists.
	ErrJobAlreadyExists = errors.Wrap(errors.ErrConflict, "job already exists")

	// ErrInvalidStatusTransition indicates a forbidden status change.
	ErrInvalidStatusTransition = errors.Wrap(errors.ErrConflict, "invalid status transition")

	// ErrInvalidOutputFormat indicates an unknown output format.
	ErrInvalidOutputFormat = errors.Wrap(errors.ErrInvalidInput, "invalid output format")

	// ErrJobNotCompleted indicates the transcript was requested before
	// the job finished.
	ErrJobNotCompleted = errors.Wrap(errors.ErrConflict, "job is not completed")

	// ErrNotJobOwner indicates the caller does not own the job.
	ErrNotJobOwner = errors.Wrap(errors.ErrForbidden, "job belongs to another user")
)
