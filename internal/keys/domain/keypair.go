// Package domain defines the key management domain entities and errors.
package domain

import (
	"github.com/SUNET/transcribe-backend/internal/errors"
)

// Keypair holds a user's RSA keypair in PEM form. The private key PEM is
// encrypted with the user's passphrase and is never usable without it.
type Keypair struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
}

// Key management error definitions.
var (
	// ErrEncryptionNotEnabled indicates the user has no keypair yet.
	ErrEncryptionNotEnabled = errors.Wrap(errors.ErrNotFound, "encryption not enabled")

	// ErrEncryptionAlreadyEnabled indicates the user already has a keypair.
	// Enabling twice would silently orphan existing containers.
	ErrEncryptionAlreadyEnabled = errors.Wrap(errors.ErrConflict, "encryption already enabled")

	// ErrEmptyPassphrase indicates an empty passphrase was supplied.
	ErrEmptyPassphrase = errors.Wrap(errors.ErrInvalidInput, "passphrase must not be empty")

	// ErrWrongPassphrase indicates the passphrase failed to unlock the
	// private key. Distinguished from ErrMalformedKey so callers can tell
	// a bad credential from corrupted key material.
	ErrWrongPassphrase = errors.Wrap(errors.ErrForbidden, "invalid passphrase")

	// ErrMalformedKey indicates the stored key material could not be parsed.
	ErrMalformedKey = errors.Wrap(errors.ErrInvalidInput, "malformed key material")

	// ErrInvalidKeySize indicates an unsupported RSA key size.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid RSA key size")
)
