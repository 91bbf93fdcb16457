// Package dto provides data transfer objects for the user HTTP layer.
package dto

import (
	"github.com/SUNET/transcribe-backend/internal/user/domain"
	"github.com/SUNET/transcribe-backend/internal/user/usecase"
)

// ToUpdateUserInput converts an UpdateUserRequest DTO to a use case input
func ToUpdateUserInput(req UpdateUserRequest) usecase.UpdateUserInput {
	return usecase.UpdateUserInput{
		Active:                req.Active,
		Admin:                 req.Admin,
		AddTranscribedSeconds: req.AddTranscribedSeconds,
	}
}

// ToUserResponse converts a domain User model to a UserResponse DTO
func ToUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:                 user.ID,
		Username:           user.Username,
		Realm:              user.Realm,
		Admin:              user.Admin,
		Active:             user.Active,
		TranscribedSeconds: user.TranscribedSeconds,
		EncryptionEnabled:  user.EncryptionEnabled,
		LastLogin:          user.LastLogin,
		CreatedAt:          user.CreatedAt,
	}
}

// ToStatsResponse converts domain Stats to a StatsResponse DTO
func ToStatsResponse(stats *domain.Stats) StatsResponse {
	return StatsResponse{
		TotalUsers:                stats.TotalUsers,
		TotalTranscribedSeconds:   stats.TotalTranscribedSeconds,
		TranscribedSecondsPerUser: stats.TranscribedSecondsPerUser,
	}
}
