// Package dto provides data transfer objects for the key management HTTP layer.
package dto

// StatusResponse reports whether encryption is enabled for the caller.
type StatusResponse struct {
	Enabled bool `json:"enabled"`
}

// ValidateResponse reports whether a passphrase unlocked the private key.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}
