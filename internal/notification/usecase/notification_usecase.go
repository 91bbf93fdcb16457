// Package usecase implements the notification business logic and the
// background dispatcher.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	jobDomain "github.com/SUNET/transcribe-backend/internal/job/domain"
	"github.com/SUNET/transcribe-backend/internal/notification/domain"
)

// NotificationRepository defines notification repository operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	GetPending(ctx context.Context, limit int) ([]*domain.Notification, error)
	Update(ctx context.Context, notification *domain.Notification) error
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

// UseCase defines the interface for notification use cases
type UseCase interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, callerID uuid.UUID, admin bool) error
	RecordJobEvent(ctx context.Context, job *jobDomain.Job) error
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

// NotificationUseCase implements business logic for notification operations
type NotificationUseCase struct {
	notificationRepo NotificationRepository
	logger           *slog.Logger
}

// NewNotificationUseCase creates a new NotificationUseCase
func NewNotificationUseCase(notificationRepo NotificationRepository, logger *slog.Logger) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// ListByUser returns the user's notifications, newest first.
func (uc *NotificationUseCase) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	return uc.notificationRepo.ListByUser(ctx, userID)
}

// MarkRead flags a notification as read. Only the addressee or an admin may
// do so.
func (uc *NotificationUseCase) MarkRead(ctx context.Context, notificationID, callerID uuid.UUID, admin bool) error {
	notification, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != callerID && !admin {
		return domain.ErrNotNotificationOwner
	}
	return uc.notificationRepo.MarkRead(ctx, notificationID)
}

// RecordJobEvent writes the notification for a finished job. It runs inside
// the same transaction as the job status change, so either both are
// persisted or neither is; delivery happens later via the dispatcher.
func (uc *NotificationUseCase) RecordJobEvent(ctx context.Context, job *jobDomain.Job) error {
	notification, ok := notificationForJob(job)
	if !ok {
		return nil
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		return err
	}

	uc.logger.Debug(
		"notification recorded",
		slog.String("notification_id", notification.ID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(notification.Type)),
	)
	return nil
}

// DeleteByJob removes all notifications for a job, used when the job itself
// is deleted.
func (uc *NotificationUseCase) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	return uc.notificationRepo.DeleteByJob(ctx, jobID)
}

func notificationForJob(job *jobDomain.Job) (*domain.Notification, bool) {
	notification := &domain.Notification{
		ID:             uuid.Must(uuid.NewV7()),
		UserID:         job.UserID,
		JobID:          job.ID,
		DispatchStatus: domain.DispatchStatusPending,
	}

	switch job.Status {
	case jobDomain.StatusCompleted:
		notification.Type = domain.TypeJobCompleted
		notification.Subject = "Transcription finished"
		notification.Message = fmt.Sprintf("The transcription of %q is ready.", job.Filename)
	case jobDomain.StatusFailed:
		notification.Type = domain.TypeJobFailed
		notification.Subject = "Transcription failed"
		notification.Message = fmt.Sprintf("The transcription of %q failed: %s", job.Filename, job.Error)
	default:
		return nil, false
	}

	return notification, true
}
