package dto

import (
	"io"

	jobDomain "github.com/SUNET/transcribe-backend/internal/job/domain"
	"github.com/SUNET/transcribe-backend/internal/media/usecase"
)

// ToUploadInput converts the validated form fields plus the uploaded file
// into a use case input. An absent output format defaults to plain text.
func ToUploadInput(req UploadRequest, filename string, size int64, content io.Reader) usecase.UploadInput {
	format := jobDomain.OutputFormat(req.OutputFormat)
	if req.OutputFormat == "" {
		format = jobDomain.OutputFormatTXT
	}
	return usecase.UploadInput{
		Filename:     filename,
		Language:     req.Language,
		ModelType:    req.ModelType,
		Speakers:     req.Speakers,
		OutputFormat: format,
		Size:         size,
		Content:      content,
	}
}
