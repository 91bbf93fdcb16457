// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Base64 validates that a string is valid base64-encoded data.
var Base64 = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	_, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

// PassphraseStrength validates an encryption passphrase. A lost passphrase
// makes every container unrecoverable, but a trivial one defeats the point of
// encrypting at rest, so a minimum length is enforced.
type PassphraseStrength struct {
	MinLength int
}

// Validate checks that the passphrase is a non-empty string of at least MinLength bytes.
func (p PassphraseStrength) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_passphrase_type", "passphrase must be a string")
	}
	if len(s) < p.MinLength {
		return validation.NewError(
			"validation_passphrase_min_length",
			fmt.Sprintf("passphrase must be at least %d characters", p.MinLength),
		)
	}
	return nil
}
