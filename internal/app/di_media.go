package app

import (
	"fmt"

	keysService "github.com/SUNET/transcribe-backend/internal/keys/service"
	keysUsecase "github.com/SUNET/transcribe-backend/internal/keys/usecase"
	mediaUsecase "github.com/SUNET/transcribe-backend/internal/media/usecase"
	userRepository "github.com/SUNET/transcribe-backend/internal/user/repository"
)

// KeyUseCase returns the key management use case instance.
func (c *Container) KeyUseCase() (keysUsecase.UseCase, error) {
	c.keyUseCaseInit.Do(func() {
		useCase, err := c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
			return
		}
		c.keyUseCase = useCase
	})
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

// MediaUseCase returns the media use case instance.
func (c *Container) MediaUseCase() (*mediaUsecase.MediaUseCase, error) {
	c.mediaUseCaseInit.Do(func() {
		useCase, err := c.initMediaUseCase()
		if err != nil {
			c.initErrors["mediaUseCase"] = err
			return
		}
		c.mediaUseCase = useCase
	})
	if storedErr, exists := c.initErrors["mediaUseCase"]; exists {
		return nil, storedErr
	}
	return c.mediaUseCase, nil
}

// initKeyUseCase creates the key use case with all its dependencies.
func (c *Container) initKeyUseCase() (keysUsecase.UseCase, error) {
	keyStore, err := keysService.NewKeyStore(c.config.RSAKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}

	userKeyRepo, err := c.initUserKeyRepository()
	if err != nil {
		return nil, err
	}

	store, err := c.Storage()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage for key use case: %w", err)
	}

	jobRepo, err := c.JobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get job repository for key use case: %w", err)
	}

	return keysUsecase.NewKeyUseCase(keyStore, userKeyRepo, store, jobRepo, c.Logger()), nil
}

// initUserKeyRepository creates a user repository typed for key operations.
// The concrete repositories implement both the account and the key surface.
func (c *Container) initUserKeyRepository() (keysUsecase.UserKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for user key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return userRepository.NewMySQLUserRepository(db), nil
	case "postgres":
		return userRepository.NewPostgreSQLUserRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initMediaUseCase creates the media use case with all its dependencies.
func (c *Container) initMediaUseCase() (*mediaUsecase.MediaUseCase, error) {
	jobUseCase, err := c.JobUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get job use case for media use case: %w", err)
	}

	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for media use case: %w", err)
	}

	store, err := c.Storage()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage for media use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for media use case: %w", err)
	}

	useCase, err := mediaUsecase.NewMediaUseCase(
		jobUseCase, keyUseCase, store, businessMetrics, c.config.CryptoChunkSize, c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create media use case: %w", err)
	}

	return useCase, nil
}
