// Package domain defines the core user domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/errors"
)

// User represents an account in the system. Identity is established by the
// front proxy; the external ID and realm come from trusted headers.
type User struct {
	ID                 uuid.UUID
	ExternalID         string
	Username           string
	Realm              string
	Admin              bool
	Active             bool
	TranscribedSeconds int64
	LastLogin          time.Time

	// EncryptionEnabled is true once the user has generated a keypair.
	// The PEM fields are empty when encryption is disabled.
	EncryptionEnabled bool
	PublicKeyPEM      string
	PrivateKeyPEM     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats summarizes recent usage for a realm.
type Stats struct {
	TotalUsers                int64
	TotalTranscribedSeconds   int64
	TranscribedSecondsPerUser map[string]int64
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same external ID already exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrUserInactive indicates the account has been deactivated.
	ErrUserInactive = errors.Wrap(errors.ErrForbidden, "user is inactive")

	// ErrExternalIDRequired indicates the external ID header was missing.
	ErrExternalIDRequired = errors.Wrap(errors.ErrInvalidInput, "external id is required")

	// ErrRealmRequired indicates the realm header was missing.
	ErrRealmRequired = errors.Wrap(errors.ErrInvalidInput, "realm is required")
)
