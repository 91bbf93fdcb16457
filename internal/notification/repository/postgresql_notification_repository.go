// Package repository provides data persistence implementations for notifications.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/database"
	"github.com/SUNET/transcribe-backend/internal/notification/domain"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// PostgreSQLNotificationRepository handles notification persistence for PostgreSQL
type PostgreSQLNotificationRepository struct {
	db *sql.DB
}

// NewPostgreSQLNotificationRepository creates a new PostgreSQLNotificationRepository
func NewPostgreSQLNotificationRepository(db *sql.DB) *PostgreSQLNotificationRepository {
	return &PostgreSQLNotificationRepository{
		db: db,
	}
}

const postgresNotificationColumns = `id, user_id, job_id, type, subject, message,
	read, dispatch_status, retries, last_error, dispatched_at, created_at, updated_at`

// Create inserts a new notification
func (r *PostgreSQLNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO notifications (id, user_id, job_id, type, subject, message,
			  read, dispatch_status, retries, last_error, dispatched_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		notification.ID, notification.UserID, notification.JobID,
		notification.Type, notification.Subject, notification.Message,
		notification.Read, notification.DispatchStatus, notification.Retries,
		notification.LastError, notification.DispatchedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create notification")
	}
	return nil
}

// GetByID retrieves a notification by ID
func (r *PostgreSQLNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresNotificationColumns + ` FROM notifications WHERE id = $1`

	return scanNotification(querier.QueryRowContext(ctx, query, id))
}

// ListByUser retrieves all notifications addressed to a user, newest first
func (r *PostgreSQLNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresNotificationColumns + ` FROM notifications
			  WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list notifications")
	}
	return collectNotifications(rows)
}

// MarkRead flags a notification as read
func (r *PostgreSQLNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE notifications SET read = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark notification read")
	}
	return checkNotificationAffected(result)
}

// GetPending retrieves undelivered notifications for the dispatcher, oldest
// first. Rows are locked so concurrent dispatchers never pick the same batch.
func (r *PostgreSQLNotificationRepository) GetPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresNotificationColumns + ` FROM notifications
			  WHERE dispatch_status = $1 ORDER BY created_at
			  LIMIT $2 FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.DispatchStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get pending notifications")
	}
	return collectNotifications(rows)
}

// Update persists dispatch bookkeeping fields
func (r *PostgreSQLNotificationRepository) Update(ctx context.Context, notification *domain.Notification) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE notifications SET read = $2, dispatch_status = $3, retries = $4,
			  last_error = $5, dispatched_at = $6, updated_at = NOW()
			  WHERE id = $1`

	result, err := querier.ExecContext(ctx, query,
		notification.ID, notification.Read, notification.DispatchStatus,
		notification.Retries, notification.LastError, notification.DispatchedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update notification")
	}
	return checkNotificationAffected(result)
}

// DeleteByJob removes all notifications recorded for a job
func (r *PostgreSQLNotificationRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM notifications WHERE job_id = $1`

	if _, err := querier.ExecContext(ctx, query, jobID); err != nil {
		return apperrors.Wrap(err, "failed to delete notifications")
	}
	return nil
}

// scanner abstracts sql.Row for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*domain.Notification, error) {
	var notification domain.Notification

	err := row.Scan(
		&notification.ID, &notification.UserID, &notification.JobID,
		&notification.Type, &notification.Subject, &notification.Message,
		&notification.Read, &notification.DispatchStatus, &notification.Retries,
		&notification.LastError, &notification.DispatchedAt,
		&notification.CreatedAt, &notification.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan notification")
	}

	return &notification, nil
}

func collectNotifications(rows *sql.Rows) ([]*domain.Notification, error) {
	defer func() {
		_ = rows.Close()
	}()

	var notifications []*domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate notification rows")
	}
	return notifications, nil
}

func checkNotificationAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
