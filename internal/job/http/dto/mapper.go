package dto

import (
	"github.com/SUNET/transcribe-backend/internal/job/domain"
	"github.com/SUNET/transcribe-backend/internal/job/usecase"
)

// ToUpdateJobInput converts an update request to a use case input.
func ToUpdateJobInput(req UpdateJobRequest) usecase.UpdateJobInput {
	input := usecase.UpdateJobInput{
		Error:              req.Error,
		TranscribedSeconds: req.TranscribedSeconds,
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		input.Status = &status
	}
	if req.OutputFormat != nil {
		format := domain.OutputFormat(*req.OutputFormat)
		input.OutputFormat = &format
	}
	return input
}

// ToJobResponse converts a domain job to its API representation.
func ToJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:                 job.ID,
		Status:             string(job.Status),
		Language:           job.Language,
		ModelType:          job.ModelType,
		Speakers:           job.Speakers,
		Filename:           job.Filename,
		OutputFormat:       string(job.OutputFormat),
		Error:              job.Error,
		TranscribedSeconds: job.TranscribedSeconds,
		Encrypted:          job.Encrypted,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
		DeletionDate:       job.DeletionDate,
	}
}

// ToJobListResponse converts a list of domain jobs to the API shape.
func ToJobListResponse(jobs []*domain.Job) JobListResponse {
	response := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, ToJobResponse(job))
	}
	return response
}
