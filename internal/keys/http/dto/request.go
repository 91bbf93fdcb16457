// Package dto provides data transfer objects for the key management HTTP layer.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/SUNET/transcribe-backend/internal/validation"
)

// PassphraseRequest carries the user's encryption passphrase.
type PassphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

// Validate validates the PassphraseRequest.
func (r *PassphraseRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Passphrase,
			validation.Required.Error("passphrase is required"),
			appValidation.PassphraseStrength{MinLength: 8},
		),
	)
	return appValidation.WrapValidationError(err)
}
