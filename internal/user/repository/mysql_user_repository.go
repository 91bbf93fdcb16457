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

// MySQLUserRepository handles user persistence for MySQL
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{
		db: db,
	}
}

const mysqlUserColumns = `id, external_id, username, realm, admin, active,
	transcribed_seconds, last_login, encryption_enabled, public_key_pem,
	private_key_pem, created_at, updated_at`

// Create inserts a new user
func (r *MySQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (id, external_id, username, realm, admin, active,
			  transcribed_seconds, last_login, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	// Convert UUID to bytes for MySQL BINARY(16)
	uuidBytes, err := user.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	_, err = querier.ExecContext(ctx, query,
		uuidBytes, user.ExternalID, user.Username, user.Realm,
		user.Admin, user.Active, user.TranscribedSeconds, user.LastLogin,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by internal ID
func (r *MySQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlUserColumns + ` FROM users WHERE id = ?`

	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	return scanMySQLUser(querier.QueryRowContext(ctx, query, uuidBytes))
}

// GetByExternalID retrieves a user by the identity provider's user ID
func (r *MySQLUserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlUserColumns + ` FROM users WHERE external_id = ?`

	return scanMySQLUser(querier.QueryRowContext(ctx, query, externalID))
}

// GetByUsername retrieves a user by username
func (r *MySQLUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlUserColumns + ` FROM users WHERE username = ?`

	return scanMySQLUser(querier.QueryRowContext(ctx, query, username))
}

// Update persists mutable account fields
func (r *MySQLUserRepository) Update(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET username = ?, admin = ?, active = ?,
			  transcribed_seconds = ?, last_login = ?, updated_at = NOW()
			  WHERE id = ?`

	uuidBytes, err := user.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query,
		user.Username, user.Admin, user.Active,
		user.TranscribedSeconds, user.LastLogin, uuidBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}
	return checkAffected(result)
}

// TouchLastLogin updates the last login timestamp
func (r *MySQLUserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET last_login = ?, updated_at = NOW() WHERE id = ?`

	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, at, uuidBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update last login")
	}
	return checkAffected(result)
}

// SetEncryptionKeys stores a freshly generated keypair and marks encryption enabled
func (r *MySQLUserRepository) SetEncryptionKeys(ctx context.Context, id uuid.UUID, publicPEM, privatePEM string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET encryption_enabled = TRUE, public_key_pem = ?,
			  private_key_pem = ?, updated_at = NOW() WHERE id = ?`

	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, publicPEM, privatePEM, uuidBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to set encryption keys")
	}
	return checkAffected(result)
}

// ClearEncryptionKeys removes the stored keypair and disables encryption
func (r *MySQLUserRepository) ClearEncryptionKeys(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET encryption_enabled = FALSE, public_key_pem = NULL,
			  private_key_pem = NULL, updated_at = NOW() WHERE id = ?`

	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, uuidBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to clear encryption keys")
	}
	return checkAffected(result)
}

// AddTranscribedSeconds increments the usage counter
func (r *MySQLUserRepository) AddTranscribedSeconds(ctx context.Context, id uuid.UUID, seconds int64) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET transcribed_seconds = transcribed_seconds + ?,
			  updated_at = NOW() WHERE id = ?`

	uuidBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	result, err := querier.ExecContext(ctx, query, seconds, uuidBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to add transcribed seconds")
	}
	return checkAffected(result)
}

// Stats aggregates usage for users in a realm active since the given time
func (r *MySQLUserRepository) Stats(ctx context.Context, realm string, since time.Time) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT username, transcribed_seconds FROM users
			  WHERE realm = ? AND last_login >= ?`

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

func scanMySQLUser(row scanner) (*domain.User, error) {
	var user domain.User
	var idBytes []byte
	var publicPEM, privatePEM sql.NullString

	err := row.Scan(
		&idBytes, &user.ExternalID, &user.Username, &user.Realm,
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

	if err := user.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}

	user.PublicKeyPEM = publicPEM.String
	user.PrivateKeyPEM = privatePEM.String

	return &user, nil
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
