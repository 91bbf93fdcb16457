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

// PostgreSQLJobRepository handles job persistence for PostgreSQL
type PostgreSQLJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLJobRepository creates a new PostgreSQLJobRepository
func NewPostgreSQLJobRepository(db *sql.DB) *PostgreSQLJobRepository {
	return &PostgreSQLJobRepository{
		db: db,
	}
}

const postgresJobColumns = `id, user_id, status, language, model_type, speakers,
	filename, output_format, error, transcribed_seconds, encrypted,
	container_version, created_at, updated_at, deletion_date`

// Create inserts a new job
func (r *PostgreSQLJobRepository) Create(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO jobs (id, user_id, status, language, model_type, speakers,
			  filename, output_format, error, transcribed_seconds, encrypted,
			  container_version, created_at, updated_at, deletion_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), $13)`

	_, err := querier.ExecContext(ctx, query,
		job.ID, job.UserID, job.Status, job.Language, job.ModelType, job.Speakers,
		job.Filename, job.OutputFormat, job.Error, job.TranscribedSeconds,
		job.Encrypted, job.ContainerVersion, job.DeletionDate,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrJobAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetByID retrieves a job by ID
func (r *PostgreSQLJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresJobColumns + ` FROM jobs WHERE id = $1`

	return scanJob(querier.QueryRowContext(ctx, query, id))
}

// ListByUser retrieves all jobs owned by a user, newest first
func (r *PostgreSQLJobRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresJobColumns + ` FROM jobs
			  WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list jobs")
	}
	return collectJobs(rows)
}

// Update persists mutable job fields
func (r *PostgreSQLJobRepository) Update(ctx context.Context, job *domain.Job) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE jobs SET status = $2, language = $3, model_type = $4,
			  speakers = $5, output_format = $6, error = $7,
			  transcribed_seconds = $8, encrypted = $9, container_version = $10,
			  deletion_date = $11, updated_at = NOW()
			  WHERE id = $1`

	result, err := querier.ExecContext(ctx, query,
		job.ID, job.Status, job.Language, job.ModelType, job.Speakers,
		job.OutputFormat, job.Error, job.TranscribedSeconds,
		job.Encrypted, job.ContainerVersion, job.DeletionDate,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update job")
	}
	return checkJobAffected(result)
}

// Delete removes a job record
func (r *PostgreSQLJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM jobs WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete job")
	}
	return checkJobAffected(result)
}

// DeleteEncryptedByUser removes all of a user's encrypted jobs. Invoked on
// key rotation, which makes their containers unrecoverable.
func (r *PostgreSQLJobRepository) DeleteEncryptedByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM jobs WHERE user_id = $1 AND encrypted = TRUE`

	result, err := querier.ExecContext(ctx, query, userID)
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
func (r *PostgreSQLJobRepository) ListExpired(ctx context.Context, before time.Time) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresJobColumns + ` FROM jobs
			  WHERE deletion_date <= $1 ORDER BY deletion_date`

	rows, err := querier.QueryContext(ctx, query, before)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired jobs")
	}
	return collectJobs(rows)
}

// ListStale retrieves non-terminal jobs that have not been touched since
// before, oldest first
func (r *PostgreSQLJobRepository) ListStale(ctx context.Context, before time.Time) ([]*domain.Job, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresJobColumns + ` FROM jobs
			  WHERE status NOT IN ($1, $2) AND updated_at <= $3 ORDER BY updated_at`

	rows, err := querier.QueryContext(ctx, query, domain.StatusCompleted, domain.StatusFailed, before)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale jobs")
	}
	return collectJobs(rows)
}

// scanner abstracts sql.Row for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job

	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &job.Language, &job.ModelType,
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

	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*domain.Job, error) {
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
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

func checkJobAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}
