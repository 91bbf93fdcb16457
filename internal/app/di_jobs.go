package app

import (
	"fmt"

	jobRepository "github.com/SUNET/transcribe-backend/internal/job/repository"
	jobUsecase "github.com/SUNET/transcribe-backend/internal/job/usecase"
)

// JobRepository returns the job repository instance.
func (c *Container) JobRepository() (jobUsecase.JobRepository, error) {
	c.jobRepoInit.Do(func() {
		repo, err := c.initJobRepository()
		if err != nil {
			c.initErrors["jobRepo"] = err
			return
		}
		c.jobRepo = repo
	})
	if storedErr, exists := c.initErrors["jobRepo"]; exists {
		return nil, storedErr
	}
	return c.jobRepo, nil
}

// JobUseCase returns the job use case instance.
func (c *Container) JobUseCase() (*jobUsecase.JobUseCase, error) {
	c.jobUseCaseInit.Do(func() {
		useCase, err := c.initJobUseCase()
		if err != nil {
			c.initErrors["jobUseCase"] = err
			return
		}
		c.jobUseCase = useCase
	})
	if storedErr, exists := c.initErrors["jobUseCase"]; exists {
		return nil, storedErr
	}
	return c.jobUseCase, nil
}

// initJobRepository creates the job repository instance.
func (c *Container) initJobRepository() (jobUsecase.JobRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for job repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return jobRepository.NewMySQLJobRepository(db), nil
	case "postgres":
		return jobRepository.NewPostgreSQLJobRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initJobUseCase creates the job use case with all its dependencies.
func (c *Container) initJobUseCase() (*jobUsecase.JobUseCase, error) {
	jobRepo, err := c.JobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get job repository for job use case: %w", err)
	}

	store, err := c.Storage()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage for job use case: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for job use case: %w", err)
	}

	notificationUseCase, err := c.NotificationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification use case for job use case: %w", err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for job use case: %w", err)
	}

	return jobUsecase.NewJobUseCase(
		jobRepo, store, userUseCase, notificationUseCase, txManager, c.Logger(),
	), nil
}
