// Package domain defines the notification domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/errors"
)

// Type classifies what a notification is about.
type Type string

const (
	// TypeJobCompleted is recorded when a transcription job finishes.
	TypeJobCompleted Type = "job_completed"
	// TypeJobFailed is recorded when a transcription job fails.
	TypeJobFailed Type = "job_failed"
)

// DispatchStatus tracks delivery by the background dispatcher. Notifications
// are written in the same transaction as the job status change and delivered
// asynchronously, so a crash between the two never loses one.
type DispatchStatus string

const (
	DispatchStatusPending    DispatchStatus = "pending"
	DispatchStatusDispatched DispatchStatus = "dispatched"
	DispatchStatusFailed     DispatchStatus = "failed"
)

// Notification represents a user-facing notification about a job.
type Notification struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	JobID   uuid.UUID
	Type    Type
	Subject string
	Message string
	Read    bool

	DispatchStatus DispatchStatus
	Retries        int
	LastError      *string
	DispatchedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Domain-specific errors for notification operations.
var (
	// ErrNotificationNotFound indicates the requested notification does not exist.
	ErrNotificationNotFound = errors.Wrap(errors.ErrNotFound, "notification not found")

	// ErrNotNotificationOwner indicates the caller does not own the notification.
	ErrNotNotificationOwner = errors.Wrap(errors.ErrForbidden, "notification belongs to another user")
)
