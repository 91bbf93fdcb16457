// Package repository provides data persistence implementations for user entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SUNET/transcribe-backend/internal/database"
	"github.com/SUNET/transcribe-backend/internal/user/domain"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

// PostgreSQLUserRepository handles user persistence for PostgreSQL
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQLUserRepository
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{
		db: db,
	}
}

const postgresUserColumns = `id, external_id, username, realm, admin, active,
	transcribed_seconds, last_login, encryption_enabled, public_key_pem,
	private_key_pem, created_at, updated_at`

// Create inserts a new user
func (r *PostgreSQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (id, external_id, username, realm, admin, active,
			  transcribed_seconds, last_login, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		user.ID, user.ExternalID, user.Username, user.Realm,
		user.Admin, user.Active, user.TranscribedSeconds, user.LastLogin,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by internal ID
func (r *PostgreSQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresUserColumns + ` FROM users WHERE id = $1`

	return scanUser(querier.QueryRowContext(ctx, query, id))
}

// GetByExternalID retrieves a user by the identity provider's user ID
func (r *PostgreSQLUserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresUserColumns + ` FROM users WHERE external_id = $1`

	return scanUser(querier.QueryRowContext(ctx, query, externalID))
}

// GetByUsername retrieves a user by username
func (r *PostgreSQLUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + postgresUserColumns + ` FROM users WHERE username = $1`

	return scanUser(querier.QueryRowContext(ctx, query, username))
}

// Update persists mutable account fields
func (r *PostgreSQLUserRepository) Update(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET username = $2, admin = $3, active = $4,
			  transcribed_seconds = $5, last_login = $6, updated_at = NOW()
			  WHERE id = $1`

	result, err := querier.ExecContext(ctx, query,
		user.ID, user.Username, user.Admin, user.Active,
		user.TranscribedSeconds, user.LastLogin,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}
	return checkAffected(result)
}

// TouchLastLogin updates the last login timestamp
func (r *PostgreSQLUserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET last_login = $2, updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, at)
	if err != nil {
		return apperrors.Wrap(err, "failed to update last login")
	}
	return checkAffected(result)
}

// SetEncryptionKeys stores a freshly generated keypair and marks encryption enabled
func (r *PostgreSQLUserRepository) SetEncryptionKeys(ctx context.Context, id uuid.UUID, publicPEM, privatePEM string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET encryption_enabled = TRUE, public_key_pem = $2,
			  private_key_pem = $3, updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, publicPEM, privatePEM)
	if err != nil {
		return apperrors.Wrap(err, "failed to set encryption keys")
	}
	return checkAffected(result)
}

// ClearEncryptionKeys removes the stored keypair and disables encryption
func (r *PostgreSQLUserRepository) ClearEncryptionKeys(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET encryption_enabled = FALSE, public_key_pem = NULL,
			  private_key_pem = NULL, updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to clear encryption keys")
	}
	return checkAffected(result)
}

// AddTranscribedSeconds increments the usage counter
func (r *PostgreSQLUserRepository) AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET transcribed_seconds = transcribed_seconds + $2,
			  updated_at = NOW() WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, id, seconds)
	if err != nil {
		return apperrors.Wrap(err, "failed to add transcribed seconds")
	}
	return checkAffected(result)
}

// Stats aggregates usage for users in a realm active since the given time
func (r *PostgreSQLUserRepository) Stats(ctx context.Context, realm string, since time.Time) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT username, transcribed_seconds FROM users
			  WHERE realm = $1 AND last_login >= $2`

	rows, err := querier.QueryContext(ctx, query, realm, since)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query user stats")
	}
	defer func() {
		_ = rows.Close()
	}()

	stats := &domain.Stats{
		TranscribedSecondsPerUser: make(map[string]int64),
	}
	for rows.Next() {
		var username string
		var seconds int64
		if err := rows.Scan(&username, &seconds); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan user stats row")
		}
		stats.TotalUsers++
		stats.TotalTranscribedSeconds += seconds
		stats.TranscribedSecondsPerUser[username] = seconds
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate user stats rows")
	}

	return stats, nil
}

// scanner abstracts sql.Row for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	var publicPEM, privatePEM sql.NullString

	err := row.Scan(
		&user.ID, &user.ExternalID, &user.Username, &user.Realm,
		&user.Admin, &user.Active, &user.TranscribedSeconds, &user.LastLogin,
		&user.EncryptionEnabled, &publicPEM, &privatePEM,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan user")
	}

	user.PublicKeyPEM = publicPEM.String
	user.PrivateKeyPEM = privatePEM.String

	return &user, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return domain.ErrUserNotFound
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
