// Package usecase implements the transcription job lifecycle.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/database"
	"github.com/SUNET/transcribe-backend/internal/job/domain"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// JobRepository defines the persistence operations the use case needs.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteEncryptedByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListExpired(ctx context.Context, before time.Time) ([]*domain.Job, error)
	ListStale(ctx context.Context, before time.Time) ([]*domain.Job, error)
}

// ObjectDeleter removes stored media and result objects. Satisfied by the
// blob store.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// UsageRecorder credits transcribed time to a user's account. Satisfied by
// the user use case.
type UsageRecorder interface {
	AddTranscribedSeconds(ctx context.Context, userID uuid.UUID, seconds int64) error
}

// Notifier records user-facing notifications for terminal job states.
// Satisfied by the notification use case.
type Notifier interface {
	RecordJobEvent(ctx context.Context, job *domain.Job) error
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

// UpdateJobInput carries the mutable fields of a job update. Nil pointers
// leave the field untouched.
type UpdateJobInput struct {
	Status             *domain.Status
	Error              *string
	TranscribedSeconds *int64
	OutputFormat       *domain.OutputFormat
}

// UseCase defines the job business logic operations.
type UseCase interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID, callerID uuid.UUID, admin bool) (*domain.Job, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Job, error)
	Update(ctx context.Context, jobID, callerID uuid.UUID, admin bool, input UpdateJobInput) (*domain.Job, error)
	Delete(ctx context.Context, jobID, callerID uuid.UUID, admin bool) error
	CleanupExpired(ctx context.Context) (int, error)
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// JobUseCase implements UseCase.
type JobUseCase struct {
	jobRepo   JobRepository
	objects   ObjectDeleter
	usage     UsageRecorder
	notifier  Notifier
	txManager database.TxManager
	logger    *slog.Logger
}

// NewJobUseCase creates a new JobUseCase.
func NewJobUseCase(
	jobRepo JobRepository,
	objects ObjectDeleter,
	usage UsageRecorder,
	notifier Notifier,
	txManager database.TxManager,
	logger *slog.Logger,
) *JobUseCase {
	return &JobUseCase{
		jobRepo:   jobRepo,
		objects:   objects,
		usage:     usage,
		notifier:  notifier,
		txManager: txManager,
		logger:    logger,
	}
}

// Create registers a new job. Defaults are filled in for the ID, status,
// output format, and deletion date when the caller leaves them zero.
func (u *JobUseCase) Create(ctx context.Context, job *domain.Job) error {
	if job.UserID == uuid.Nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "job requires an owner")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.Must(uuid.NewV7())
	}
	if job.Status == "" {
		job.Status = domain.StatusUploading
	}
	if job.OutputFormat == "" {
		job.OutputFormat = domain.OutputFormatTXT
	}
	if !job.OutputFormat.IsValid() {
		return domain.ErrInvalidOutputFormat
	}
	if job.DeletionDate.IsZero() {
		job.DeletionDate = time.Now().Add(domain.RetentionPeriod)
	}

	if err := u.jobRepo.Create(ctx, job); err != nil {
		return err
	}

	u.logger.Info(
		"job created",
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", job.UserID.String()),
		slog.Bool("encrypted", job.Encrypted),
	)
	return nil
}

// Get fetches a job, enforcing ownership unless the caller is an admin.
func (u *JobUseCase) Get(ctx context.Context, jobID, callerID uuid.UUID, admin bool) (*domain.Job, error) {
	job, err := u.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != callerID && !admin {
		return nil, domain.ErrNotJobOwner
	}
	return job, nil
}

// ListByUser returns the caller's jobs, newest first.
func (u *JobUseCase) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Job, error) {
	return u.jobRepo.ListByUser(ctx, userID)
}

// Update applies the given fields to a job. Status changes are validated
// against the status machine; a completed job that reports transcribed
// seconds credits the owner's usage counter.
func (u *JobUseCase) Update(ctx context.Context, jobID, callerID uuid.UUID, admin bool, input UpdateJobInput) (*domain.Job, error) {
	job, err := u.Get(ctx, jobID, callerID, admin)
	if err != nil {
		return nil, err
	}

	completing := false
	terminal := false
	if input.Status != nil && *input.Status != job.Status {
		if !input.Status.IsValid() {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown status %q", *input.Status)
		}
		if !job.Status.CanTransition(*input.Status) {
			return nil, apperrors.Wrapf(domain.ErrInvalidStatusTransition,
				"%s to %s", job.Status, *input.Status)
		}
		completing = *input.Status == domain.StatusCompleted
		terminal = completing || *input.Status == domain.StatusFailed
		job.Status = *input.Status
		if job.Status != domain.StatusFailed {
			job.Error = ""
		}
	}
	if input.Error != nil {
		job.Error = *input.Error
	}
	if input.TranscribedSeconds != nil {
		if *input.TranscribedSeconds < 0 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "transcribed seconds must not be negative")
		}
		job.TranscribedSeconds = *input.TranscribedSeconds
	}
	if input.OutputFormat != nil {
		if !input.OutputFormat.IsValid() {
			return nil, domain.ErrInvalidOutputFormat
		}
		job.OutputFormat = *input.OutputFormat
	}

	// Terminal transitions persist the job and its notification in one
	// transaction: a crash between the two never completes a job silently.
	if terminal {
		err = u.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := u.jobRepo.Update(ctx, job); err != nil {
				return err
			}
			return u.notifier.RecordJobEvent(ctx, job)
		})
	} else {
		err = u.jobRepo.Update(ctx, job)
	}
	if err != nil {
		return nil, err
	}

	if completing && job.TranscribedSeconds > 0 {
		if err := u.usage.AddTranscribedSeconds(ctx, job.UserID, job.TranscribedSeconds); err != nil {
			u.logger.Warn(
				"failed to credit transcribed seconds",
				slog.String("job_id", job.ID.String()),
				slog.String("user_id", job.UserID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return job, nil
}

// Delete removes a job record and its stored objects.
func (u *JobUseCase) Delete(ctx context.Context, jobID, callerID uuid.UUID, admin bool) error {
	job, err := u.Get(ctx, jobID, callerID, admin)
	if err != nil {
		return err
	}
	return u.remove(ctx, job)
}

// CleanupExpired deletes every job whose retention period has passed,
// together with its media and result objects. Returns how many jobs were
// removed.
func (u *JobUseCase) CleanupExpired(ctx context.Context) (int, error) {
	expired, err := u.jobRepo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range expired {
		if err := u.remove(ctx, job); err != nil {
			u.logger.Warn(
				"failed to remove expired job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		u.logger.Info("expired jobs removed", slog.Int("count", removed))
	}
	return removed, nil
}

// FailStale marks every non-terminal job that has not progressed for
// olderThan as failed, recording the notification alongside. Returns how
// many jobs were failed.
func (u *JobUseCase) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := u.jobRepo.ListStale(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, job := range stale {
		job.Status = domain.StatusFailed
		job.Error = "job stalled and was cleaned up"

		err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := u.jobRepo.Update(ctx, job); err != nil {
				return err
			}
			return u.notifier.RecordJobEvent(ctx, job)
		})
		if err != nil {
			u.logger.Warn(
				"failed to fail stale job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		failed++
	}

	if failed > 0 {
		u.logger.Info("stale jobs failed", slog.Int("count", failed))
	}
	return failed, nil
}

func (u *JobUseCase) remove(ctx context.Context, job *domain.Job) error {
	for _, key := range []string{job.MediaObjectKey(), job.ResultObjectKey()} {
		if err := u.objects.Delete(ctx, key); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	if err := u.notifier.DeleteByJob(ctx, job.ID); err != nil {
		u.logger.Warn(
			"failed to delete job notifications",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if err := u.jobRepo.Delete(ctx, job.ID); err != nil {
		return err
	}

	u.logger.Info(
		"job deleted",
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", job.UserID.String()),
	)
	return nil
}
