package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/SUNET/transcribe-backend/internal/database"
	"github.com/SUNET/transcribe-backend/internal/notification/domain"
)

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// Sender delivers a notification to the outside world. The default sender
// only logs; deployments plug in mail or push gateways here.
type Sender interface {
	Send(ctx context.Context, notification *domain.Notification) error
}

// Dispatcher polls for pending notifications and delivers them in batches.
// Each batch runs in a transaction so a crashed dispatcher leaves pending
// rows for the next run instead of losing them.
type Dispatcher struct {
	config           DispatcherConfig
	txManager        database.TxManager
	notificationRepo NotificationRepository
	sender           Sender
	logger           *slog.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	config DispatcherConfig,
	txManager database.TxManager,
	notificationRepo NotificationRepository,
	sender Sender,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		config:           config,
		txManager:        txManager,
		notificationRepo: notificationRepo,
		sender:           sender,
		logger:           logger,
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting notification dispatcher",
		slog.Duration("interval", d.config.Interval),
		slog.Int("batch_size", d.config.BatchSize),
	)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping notification dispatcher")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Dispatch(ctx); err != nil {
				d.logger.Error("failed to dispatch notifications", slog.Any("error", err))
			}
		}
	}
}

// Dispatch delivers one batch of pending notifications in a transaction.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	return d.txManager.WithTx(ctx, func(ctx context.Context) error {
		pending, err := d.notificationRepo.GetPending(ctx, d.config.BatchSize)
		if err != nil {
			return err
		}

		if len(pending) == 0 {
			return nil
		}

		d.logger.Info("dispatching notifications", slog.Int("count", len(pending)))

		for _, notification := range pending {
			if err := d.sender.Send(ctx, notification); err != nil {
				d.logger.Error("failed to deliver notification",
					slog.String("notification_id", notification.ID.String()),
					slog.String("type", string(notification.Type)),
					slog.Any("error", err),
				)

				notification.Retries++
				errorMsg := err.Error()
				notification.LastError = &errorMsg

				if notification.Retries >= d.config.MaxRetries {
					notification.DispatchStatus = domain.DispatchStatusFailed
				}

				if err := d.notificationRepo.Update(ctx, notification); err != nil {
					return err
				}
				continue
			}

			now := time.Now()
			notification.DispatchStatus = domain.DispatchStatusDispatched
			notification.DispatchedAt = &now

			if err := d.notificationRepo.Update(ctx, notification); err != nil {
				return err
			}
		}

		return nil
	})
}

// LogSender is a Sender that records deliveries in the log only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger,
	}
}

// Send logs the notification delivery.
func (s *LogSender) Send(ctx context.Context, notification *domain.Notification) error {
	s.logger.Info("notification delivered",
		slog.String("notification_id", notification.ID.String()),
		slog.String("user_id", notification.UserID.String()),
		slog.String("type", string(notification.Type)),
		slog.String("subject", notification.Subject),
	)
	return nil
}
