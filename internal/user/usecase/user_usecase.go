// Package usecase implements the user business logic and orchestrates user domain operations.
package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/user/domain"
)

// Identity carries the fields the front proxy asserts about the caller.
type Identity struct {
	ExternalID string
	Realm      string
	Username   string
}

// UpdateUserInput contains the admin-updatable account fields.
// Nil pointers leave the current value unchanged.
type UpdateUserInput struct {
	Active                *bool
	Admin                 *bool
	AddTranscribedSeconds int64
}

// UseCase defines the interface for user business logic operations
type UseCase interface {
	// GetOrCreate resolves the identity to an account, creating it on
	// first contact and refreshing the last login timestamp.
	GetOrCreate(ctx context.Context, identity Identity) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, username string, input UpdateUserInput) (*domain.User, error)
	AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error
	Stats(ctx context.Context, realm string, days int) (*domain.Stats, error)
}

// UserRepository interface defines user repository operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error
	Stats(ctx context.Context, realm string, since time.Time) (*domain.Stats, error)
}

// UserUseCase handles user-related business logic
type UserUseCase struct {
	userRepo UserRepository
	logger   *slog.Logger
}

// NewUserUseCase creates a new UserUseCase
func NewUserUseCase(userRepo UserRepository, logger *slog.Logger) UseCase {
	return &UserUseCase{
		userRepo: userRepo,
		logger:   logger,
	}
}

// GetOrCreate resolves a proxied identity to an account. Accounts are
// provisioned on first contact; inactive accounts are rejected.
func (uc *UserUseCase) GetOrCreate(ctx context.Context, identity Identity) (*domain.User, error) {
	if strings.TrimSpace(identity.ExternalID) == "" {
		return nil, domain.ErrExternalIDRequired
	}
	if strings.TrimSpace(identity.Realm) == "" {
		return nil, domain.ErrRealmRequired
	}

	user, err := uc.userRepo.GetByExternalID(ctx, identity.ExternalID)
	if err == nil {
		if !user.Active {
			return nil, domain.ErrUserInactive
		}
		if err := uc.userRepo.TouchLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
			uc.logger.Warn("failed to update last login",
				slog.String("user_id", user.ID.String()),
				slog.Any("error", err))
		}
		return user, nil
	}
	if !apperrors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user = &domain.User{
		ID:         uuid.Must(uuid.NewV7()),
		ExternalID: identity.ExternalID,
		Username:   identity.Username,
		Realm:      identity.Realm,
		Active:     true,
		LastLogin:  time.Now().UTC(),
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		// A concurrent request may have provisioned the account first.
		if apperrors.Is(err, domain.ErrUserAlreadyExists) {
			return uc.userRepo.GetByExternalID(ctx, identity.ExternalID)
		}
		return nil, err
	}

	uc.logger.Info("provisioned new user",
		slog.String("user_id", user.ID.String()),
		slog.String("realm", user.Realm))

	return user, nil
}

// GetByID retrieves a user by internal ID
func (uc *UserUseCase) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

// UpdateUser applies admin changes to an account identified by username
func (uc *UserUseCase) UpdateUser(ctx context.Context, username string, input UpdateUserInput) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "username is required")
	}

	user, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if input.Active != nil {
		user.Active = *input.Active
	}
	if input.Admin != nil {
		user.Admin = *input.Admin
	}
	if input.AddTranscribedSeconds < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "transcribed seconds must not be negative")
	}
	user.TranscribedSeconds += input.AddTranscribedSeconds
	user.LastLogin = time.Now().UTC()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// AddTranscribedSeconds increments the usage counter for a user
func (uc *UserUseCase) AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error {
	if seconds < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "transcribed seconds must not be negative")
	}
	if seconds == 0 {
		return nil
	}
	return uc.userRepo.AddTranscribedSeconds(ctx, id, seconds)
}

// Stats aggregates recent usage for a realm. Days defaults to 30.
func (uc *UserUseCase) Stats(ctx context.Context, realm string, days int) (*domain.Stats, error) {
	if strings.TrimSpace(realm) == "" {
		return nil, domain.ErrRealmRequired
	}
	if days <= 0 {
		days = 30
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	return uc.userRepo.Stats(ctx, realm, since)
}
