// Package usecase implements the key management business logic.
package usecase

import (
	"context"
	"crypto/rsa"
	"log/slog"

	"github.com/google/uuid"

	jobDomain "github.com/SUNET/transcribe-backend/internal/job/domain"
	"github.com/SUNET/transcribe-backend/internal/keys/domain"
	keysService "github.com/SUNET/transcribe-backend/internal/keys/service"
	userDomain "github.com/SUNET/transcribe-backend/internal/user/domain"
)

// UseCase defines the interface for key management operations.
type UseCase interface {
	// Enable generates a keypair for the user, protected by passphrase.
	Enable(ctx context.Context, userID uuid.UUID, passphrase string) error

	// Status reports whether encryption is enabled for the user.
	Status(ctx context.Context, userID uuid.UUID) (bool, error)

	// Validate reports whether the passphrase unlocks the user's private key.
	Validate(ctx context.Context, userID uuid.UUID, passphrase string) (bool, error)

	// Reset rotates the keypair under a new passphrase. Existing encrypted
	// containers become unreadable and are purged, along with the job
	// records that referenced them.
	Reset(ctx context.Context, userID uuid.UUID, passphrase string) error

	// PublicKey returns the user's public key for sealing new containers.
	PublicKey(ctx context.Context, userID uuid.UUID) (*rsa.PublicKey, error)

	// PrivateKey unlocks the user's private key with the passphrase.
	PrivateKey(ctx context.Context, userID uuid.UUID, passphrase string) (*rsa.PrivateKey, error)
}

// UserKeyRepository defines the user persistence operations needed here.
type UserKeyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error)
	SetEncryptionKeys(ctx context.Context, id uuid.UUID, publicPEM, privatePEM string) error
	ClearEncryptionKeys(ctx context.Context, id uuid.UUID) error
}

// ContainerPurger removes stored objects matching a prefix and suffix.
type ContainerPurger interface {
	DeleteMatching(ctx context.Context, prefix, suffix string) (int, error)
}

// EncryptedJobPurger removes job records whose containers were purged.
type EncryptedJobPurger interface {
	DeleteEncryptedByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// KeyUseCase handles key management business logic.
type KeyUseCase struct {
	keyStore  keysService.KeyStore
	userRepo  UserKeyRepository
	purger    ContainerPurger
	jobPurger EncryptedJobPurger
	logger    *slog.Logger
}

// NewKeyUseCase creates a new KeyUseCase.
func NewKeyUseCase(
	keyStore keysService.KeyStore,
	userRepo UserKeyRepository,
	purger ContainerPurger,
	jobPurger EncryptedJobPurger,
	logger *slog.Logger,
) UseCase {
	return &KeyUseCase{
		keyStore:  keyStore,
		userRepo:  userRepo,
		purger:    purger,
		jobPurger: jobPurger,
		logger:    logger,
	}
}

// Enable generates a keypair for the user.
func (uc *KeyUseCase) Enable(ctx context.Context, userID uuid.UUID, passphrase string) error {
	if passphrase == "" {
		return domain.ErrEmptyPassphrase
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EncryptionEnabled {
		return domain.ErrEncryptionAlreadyEnabled
	}

	keypair, err := uc.keyStore.GenerateKeypair(passphrase)
	if err != nil {
		return err
	}

	if err := uc.userRepo.SetEncryptionKeys(ctx, userID, keypair.PublicKeyPEM, keypair.PrivateKeyPEM); err != nil {
		return err
	}

	uc.logger.Info("encryption enabled", slog.String("user_id", userID.String()))
	return nil
}

// Status reports whether encryption is enabled for the user.
func (uc *KeyUseCase) Status(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.EncryptionEnabled, nil
}

// Validate reports whether the passphrase unlocks the user's private key.
func (uc *KeyUseCase) Validate(ctx context.Context, userID uuid.UUID, passphrase string) (bool, error) {
	if passphrase == "" {
		return false, domain.ErrEmptyPassphrase
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.EncryptionEnabled {
		return false, domain.ErrEncryptionNotEnabled
	}

	return uc.keyStore.ValidatePassphrase(user.PrivateKeyPEM, passphrase)
}

// Reset rotates the keypair under a new passphrase and purges every
// container sealed under the old public key.
func (uc *KeyUseCase) Reset(ctx context.Context, userID uuid.UUID, passphrase string) error {
	if passphrase == "" {
		return domain.ErrEmptyPassphrase
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.EncryptionEnabled {
		return domain.ErrEncryptionNotEnabled
	}

	keypair, err := uc.keyStore.GenerateKeypair(passphrase)
	if err != nil {
		return err
	}

	if err := uc.userRepo.SetEncryptionKeys(ctx, userID, keypair.PublicKeyPEM, keypair.PrivateKeyPEM); err != nil {
		return err
	}

	// Containers sealed under the old key are unreadable now.
	prefix := jobDomain.UserObjectPrefix(userID)
	purged, err := uc.purger.DeleteMatching(ctx, prefix, jobDomain.EncryptedSuffix)
	if err != nil {
		uc.logger.Error("failed to purge encrypted containers after key reset",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		return err
	}

	jobsRemoved, err := uc.jobPurger.DeleteEncryptedByUser(ctx, userID)
	if err != nil {
		uc.logger.Error("failed to remove encrypted jobs after key reset",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		return err
	}

	uc.logger.Info("encryption keys rotated",
		slog.String("user_id", userID.String()),
		slog.Int("containers_purged", purged),
		slog.Int64("jobs_removed", jobsRemoved))

	return nil
}

// PublicKey returns the user's public key for sealing new containers.
func (uc *KeyUseCase) PublicKey(ctx context.Context, userID uuid.UUID) (*rsa.PublicKey, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.EncryptionEnabled {
		return nil, domain.ErrEncryptionNotEnabled
	}

	return uc.keyStore.PublicKey(user.PublicKeyPEM)
}

// PrivateKey unlocks the user's private key with the passphrase.
func (uc *KeyUseCase) PrivateKey(ctx context.Context, userID uuid.UUID, passphrase string) (*rsa.PrivateKey, error) {
	if passphrase == "" {
		return nil, domain.ErrEmptyPassphrase
	}

	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.EncryptionEnabled {
		return nil, domain.ErrEncryptionNotEnabled
	}

	return uc.keyStore.PrivateKey(user.PrivateKeyPEM, passphrase)
}
