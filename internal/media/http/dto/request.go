// Package dto defines request and response shapes for the media HTTP API.
package dto

import (
	validation "github.com/jellydator/validation"
)

// UploadRequest carries the multipart form fields accompanying a media
// upload. The file itself is read from the "file" form part.
type UploadRequest struct {
	Language     string `form:"language"`
	ModelType    string `form:"model_type"`
	Speakers     string `form:"speakers"`
	OutputFormat string `form:"output_format"`
}

// Validate validates the upload form fields.
func (r UploadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Language, validation.Length(0, 16)),
		validation.Field(&r.ModelType, validation.Length(0, 64)),
		validation.Field(&r.Speakers, validation.Length(0, 16)),
		validation.Field(&r.OutputFormat, validation.In("txt", "srt", "csv")),
	)
}

// UploadResultRequest carries a finished transcript for a job.
type UploadResultRequest struct {
	Content string `json:"content"`
}

// Validate validates the result payload.
func (r UploadResultRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}
