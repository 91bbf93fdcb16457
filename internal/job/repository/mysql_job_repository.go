// Package repository provides data persistence implementations for job entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/database"
	"github.com/SUNET/transcribe-backend/internal/job/domain"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// MySQLJobRepository handles job persistence for MySQL
type MySQLJobRepository struct {
	db *sql.DB
}

// NewMySQLJobRepository creates a new MySQLJobRepository
func NewMySQLJobRepository(db *sql.DB) *MySQLJobRepository {
	return &MySQLJobRepository{
		db: db,
	}
}

const mysqlJobColumns = `id, user_id, status, language, model_type, speakers,
	filename, output_format, error, transcribed_seconds, encrypted,
	container_version, created_at, updated_at, deletion_date`

// Create inserts a new job
func (r *MySQLJobRepository) Create(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO jobs (id, user_id, status, language, model_type, speakers,
			  filename, output_format, error, transcribed_seconds, encrypted,
			  container_version, created_at, updated_at, deletion_date)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW(), ?)`

	// Convert UUIDs to bytes for MySQL BINARY(16)
	idBytes, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}
	userIDBytes, err := job.UserID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query,
		idBytes, userIDBytes, job.Status, job.Language, job.ModelType, job.Speakers,
		job.Filename, job.OutputFormat, job.Error, job.TranscribedSeconds,
		job.Encrypted, job.ContainerVersion, job.DeletionDate,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return domain.ErrJobAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetByID retrieves a job by ID
func (r *MySQLJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlJobColumns + ` FROM jobs WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	return scanMySQLJob(querier.QueryRowContext(ctx, query, idBytes))
}

// ListByUser retrieves all jobs owned by a user, newest first
func (r *MySQLJobRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlJobColumns + ` FROM jobs
			  WHERE user_id = ? ORDER BY created_at DESC`

	userIDBytes, err := userID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	rows, err := querier.QueryContext(ctx, query, userIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list jobs")
	}
	return collectMySQLJobs(rows)
}

// Update persists mutable job fields
func (r *MySQLJobRepository) Update(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE jobs SET status = ?, language = ?, model_type = ?,
			  speakers = ?, output_format = ?, error = ?,
			  transcribed_seconds = ?, encrypted = ?, container_version = ?,
			  deletion_date = ?, updated_at = NOW()
			  WHERE id = ?`

	idBytes, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query,
		job.Status, job.Language, job.ModelType, job.Speakers,
		job.OutputFormat, job.Error, job.TranscribedSeconds,
		job.Encrypted, job.ContainerVersion, job.DeletionDate, idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update job")
	}
	return checkJobAffected(result)
}

// Delete removes a job record
func (r *MySQLJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM jobs WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete job")
	}
	return checkJobAffected(result)
}

// DeleteEncryptedByUser removes all of a user's encrypted jobs. Invoked on
// key rotation, which makes their containers unrecoverable.
func (r *MySQLJobRepository) DeleteEncryptedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM jobs WHERE user_id = ? AND encrypted = TRUE`

	userIDBytes, err := userID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, userIDBytes)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete encrypted jobs")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read rows affected")
	}
	return affected, nil
}

// ListExpired retrieves jobs whose deletion date has passed
func (r *MySQLJobRepository) ListExpired(ctx context.Context, before time.Time) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlJobColumns + ` FROM jobs
			  WHERE deletion_date <= ? ORDER BY deletion_date`

	rows, err := querier.QueryContext(ctx, query, before)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired jobs")
	}
	return collectMySQLJobs(rows)
}

// ListStale retrieves non-terminal jobs that have not been touched since
// before, oldest first
func (r *MySQLJobRepository) ListStale(ctx context.Context, before time.Time) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlJobColumns + ` FROM jobs
			  WHERE status NOT IN (?, ?) AND updated_at <= ? ORDER BY updated_at`

	rows, err := querier.QueryContext(ctx, query, domain.StatusCompleted, domain.StatusFailed, before)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale jobs")
	}
	return collectMySQLJobs(rows)
}

func scanMySQLJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var idBytes, userIDBytes []byte

	err := row.Scan(
		&idBytes, &userIDBytes, &job.Status, &job.Language, &job.ModelType,
		&job.Speakers, &job.Filename, &job.OutputFormat, &job.Error,
		&job.TranscribedSeconds, &job.Encrypted, &job.ContainerVersion,
		&job.CreatedAt, &job.UpdatedAt, &job.DeletionDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan job")
	}

	if err := job.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}
	if err := job.UserID.UnmarshalBinary(userIDBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	return &job, nil
}

func collectMySQLJobs(rows *sql.Rows) ([]*domain.Job, error) {
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanMySQLJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate job rows")
	}
	return jobs, nil
}

// isMySQLUniqueViolation checks if the error is a MySQL unique constraint violation
func isMySQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	// MySQL: "Error 1062: Duplicate entry"
	return strings.Contains(errMsg, "duplicate entry") || strings.Contains(errMsg, "1062")
}
