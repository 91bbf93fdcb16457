package domain

import (
	"github.com/SUNET/transcribe-backend/internal/errors"
)

// Domain-specific errors for the container codec. Authentication failures
// and corruption are kept distinct so callers can tell "wrong password"
// apart from "file is broken".
var (
	// ErrAuthenticationFailed indicates an AEAD tag that did not verify or a
	// wrapped key that could not be unwrapped. Both tampering and a wrong
	// private key surface this way; they are indistinguishable.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrForbidden, "envelope authentication failed")

	// ErrCorruptContainer indicates a structural problem with a container:
	// a truncated header, a length prefix with too few bytes behind it, or
	// an envelope too short to hold a wrapped key and nonce. Fatal for the
	// affected chunk, never guessed around.
	ErrCorruptContainer = errors.New("corrupt container")

	// ErrInvalidChunkSize indicates a chunk size below one byte.
	ErrInvalidChunkSize = errors.Wrap(errors.ErrInvalidInput, "chunk size must be at least 1")
)
