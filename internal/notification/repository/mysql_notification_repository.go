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

// MySQLNotificationRepository handles notification persistence for MySQL
type MySQLNotificationRepository struct {
	db *sql.DB
}

// NewMySQLNotificationRepository creates a new MySQLNotificationRepository
func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{
		db: db,
	}
}

// `read` is a reserved word in MySQL, hence the backticks.
const mysqlNotificationColumns = "id, user_id, job_id, type, subject, message, " +
	"`read`, dispatch_status, retries, last_error, dispatched_at, created_at, updated_at"

// Create inserts a new notification
func (r *MySQLNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	querier := database.GetTx(ctx, r.db)

	query := "INSERT INTO notifications (id, user_id, job_id, type, subject, message, " +
		"`read`, dispatch_status, retries, last_error, dispatched_at, created_at, updated_at) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())"

	// Convert UUIDs to bytes for MySQL BINARY(16)
	idBytes, err := notification.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}
	userIDBytes, err := notification.UserID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}
	jobIDBytes, err := notification.JobID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query,
		idBytes, userIDBytes, jobIDBytes,
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
func (r *MySQLNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlNotificationColumns + ` FROM notifications WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	return scanMySQLNotification(querier.QueryRowContext(ctx, query, idBytes))
}

// ListByUser retrieves all notifications addressed to a user, newest first
func (r *MySQLNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlNotificationColumns + ` FROM notifications
			  WHERE user_id = ? ORDER BY created_at DESC`

	userIDBytes, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	rows, err := querier.QueryContext(ctx, query, userIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list notifications")
	}
	return collectMySQLNotifications(rows)
}

// MarkRead flags a notification as read
func (r *MySQLNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := "UPDATE notifications SET `read` = TRUE, updated_at = NOW() WHERE id = ?"

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark notification read")
	}
	return checkNotificationAffected(result)
}

// GetPending retrieves undelivered notifications for the dispatcher, oldest
// first. Rows are locked so concurrent dispatchers never pick the same batch.
func (r *MySQLNotificationRepository) GetPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlNotificationColumns + ` FROM notifications
			  WHERE dispatch_status = ? ORDER BY created_at
			  LIMIT ? FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.DispatchStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get pending notifications")
	}
	return collectMySQLNotifications(rows)
}

// Update persists dispatch bookkeeping fields
func (r *MySQLNotificationRepository) Update(ctx context.Context, notification *domain.Notification) error {
	querier := database.GetTx(ctx, r.db)

	query := "UPDATE notifications SET `read` = ?, dispatch_status = ?, retries = ?, " +
		"last_error = ?, dispatched_at = ?, updated_at = NOW() WHERE id = ?"

	idBytes, err := notification.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query,
		notification.Read, notification.DispatchStatus, notification.Retries,
		notification.LastError, notification.DispatchedAt, idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update notification")
	}
	return checkNotificationAffected(result)
}

// DeleteByJob removes all notifications recorded for a job
func (r *MySQLNotificationRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM notifications WHERE job_id = ?`

	jobIDBytes, err := jobID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	if _, err := querier.ExecContext(ctx, query, jobIDBytes); err != nil {
		return apperrors.Wrap(err, "failed to delete notifications")
	}
	return nil
}

func scanMySQLNotification(row scanner) (*domain.Notification, error) {
	var notification domain.Notification
	var idBytes, userIDBytes, jobIDBytes []byte

	err := row.Scan(
		&idBytes, &userIDBytes, &jobIDBytes,
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

	if err := notification.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}
	if err := notification.UserID.UnmarshalBinary(userIDBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}
	if err := notification.JobID.UnmarshalBinary(jobIDBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &notification, nil
}

func collectMySQLNotifications(rows *sql.Rows) ([]*domain.Notification, error) {
	defer func() {
		_ = rows.Close()
	}()

	var notifications []*domain.Notification
	for rows.Next() {
		notification, err := scanMySQLNotification(rows)
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
