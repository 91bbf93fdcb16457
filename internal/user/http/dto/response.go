// Package dto provides data transfer objects for the user HTTP layer.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// UserResponse represents the API response for a user. It excludes key
// material and exposes only the encryption status flag.
type UserResponse struct {
	ID                 uuid.UUID `json:"id"`
	Username           string    `json:"username"`
	Realm              string    `json:"realm"`
	Admin              bool      `json:"admin"`
	Active             bool      `json:"active"`
	TranscribedSeconds int64     `json:"transcribed_seconds"`
	EncryptionEnabled  bool      `json:"encryption_enabled"`
	LastLogin          time.Time `json:"last_login"`
	CreatedAt          time.Time `json:"created_at"`
}

// StatsResponse represents aggregated realm usage.
type StatsResponse struct {
	TotalUsers                int64            `json:"total_users"`
	TotalTranscribedSeconds   int64            `json:"total_transcribed_seconds"`
	TranscribedSecondsPerUser map[string]int64 `json:"transcribed_seconds_per_user"`
}
