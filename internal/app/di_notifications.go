package app

import (
	"fmt"

	notificationRepository "github.com/SUNET/transcribe-backend/internal/notification/repository"
	notificationUsecase "github.com/SUNET/transcribe-backend/internal/notification/usecase"
)

// NotificationRepository returns the notification repository instance.
func (c *Container) NotificationRepository() (notificationUsecase.NotificationRepository, error) {
	c.notificationRepoInit.Do(func() {
		repo, err := c.initNotificationRepository()
		if err != nil {
			c.initErrors["notificationRepo"] = err
			return
		}
		c.notificationRepo = repo
	})
	if storedErr, exists := c.initErrors["notificationRepo"]; exists {
		return nil, storedErr
	}
	return c.notificationRepo, nil
}

// NotificationUseCase returns the notification use case instance.
func (c *Container) NotificationUseCase() (*notificationUsecase.NotificationUseCase, error) {
	c.notificationUseCaseInit.Do(func() {
		notificationRepo, err := c.NotificationRepository()
		if err != nil {
			c.initErrors["notificationUseCase"] = fmt.Errorf(
				"failed to get notification repository for notification use case: %w", err)
			return
		}
		c.notificationUseCase = notificationUsecase.NewNotificationUseCase(notificationRepo, c.Logger())
	})
	if storedErr, exists := c.initErrors["notificationUseCase"]; exists {
		return nil, storedErr
	}
	return c.notificationUseCase, nil
}

// Dispatcher returns the notification dispatcher worker.
func (c *Container) Dispatcher() (*notificationUsecase.Dispatcher, error) {
	c.dispatcherInit.Do(func() {
		dispatcher, err := c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
			return
		}
		c.dispatcher = dispatcher
	})
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// initNotificationRepository creates the notification repository instance.
func (c *Container) initNotificationRepository() (notificationUsecase.NotificationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for notification repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return notificationRepository.NewMySQLNotificationRepository(db), nil
	case "postgres":
		return notificationRepository.NewPostgreSQLNotificationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initDispatcher creates the notification dispatcher with all its dependencies.
func (c *Container) initDispatcher() (*notificationUsecase.Dispatcher, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispatcher: %w", err)
	}

	notificationRepo, err := c.NotificationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification repository for dispatcher: %w", err)
	}

	dispatcherConfig := notificationUsecase.DispatcherConfig{
		Interval:   c.config.NotificationPollInterval,
		BatchSize:  c.config.NotificationBatchSize,
		MaxRetries: c.config.NotificationMaxRetries,
	}

	sender := notificationUsecase.NewLogSender(c.Logger())

	return notificationUsecase.NewDispatcher(
		dispatcherConfig, txManager, notificationRepo, sender, c.Logger(),
	), nil
}
