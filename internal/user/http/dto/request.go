// Package dto provides data transfer objects for the user HTTP layer.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/SUNET/transcribe-backend/internal/validation"
)

// UpdateUserRequest represents the admin API request to update an account.
// Nil fields leave the current value unchanged.
type UpdateUserRequest struct {
	Active                *bool `json:"active"`
	Admin                 *bool `json:"admin"`
	AddTranscribedSeconds int64 `json:"add_transcribed_seconds"`
}

// Validate validates the UpdateUserRequest.
func (r *UpdateUserRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.AddTranscribedSeconds,
			validation.Min(int64(0)).Error("add_transcribed_seconds must not be negative"),
		),
	)
	return appValidation.WrapValidationError(err)
}
