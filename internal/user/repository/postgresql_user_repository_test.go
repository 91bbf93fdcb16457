package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/testutil"
	"github.com/SUNET/transcribe-backend/internal/user/domain"
)

func newPostgresUser(username string) *domain.User {
	return &domain.User{
		ID:         uuid.Must(uuid.NewV7()),
		ExternalID: "ext-" + username,
		Username:   username,
		Realm:      "example.org",
		Active:     true,
		LastLogin:  time.Now().UTC(),
	}
}

func TestNewPostgreSQLUserRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLUserRepository_Create(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	err := repo.Create(ctx, user)
	assert.NoError(t, err)

	// Verify the user was created
	created, err := repo.GetByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, created.ID)
	assert.Equal(t, user.ExternalID, created.ExternalID)
	assert.Equal(t, user.Username, created.Username)
	assert.Equal(t, user.Realm, created.Realm)
	assert.True(t, created.Active)
	assert.False(t, created.Admin)
	assert.False(t, created.EncryptionEnabled)
	assert.Empty(t, created.PublicKeyPEM)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
}

func TestPostgreSQLUserRepository_Create_Duplicate(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	duplicate := newPostgresUser("alice")
	err := repo.Create(ctx, duplicate)
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, domain.ErrUserAlreadyExists))
}

func TestPostgreSQLUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user, err := repo.GetByID(ctx, uuid.Must(uuid.NewV7()))
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, apperrors.Is(err, domain.ErrUserNotFound))
}

func TestPostgreSQLUserRepository_GetByExternalID(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.GetByExternalID(ctx, "ext-alice")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetByExternalID(ctx, "ext-nobody")
	assert.True(t, apperrors.Is(err, domain.ErrUserNotFound))
}

func TestPostgreSQLUserRepository_GetByUsername(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.GetByUsername(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestPostgreSQLUserRepository_Update(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	user.Admin = true
	user.Active = false
	user.TranscribedSeconds = 120
	err := repo.Update(ctx, user)
	assert.NoError(t, err)

	updated, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.Admin)
	assert.False(t, updated.Active)
	assert.Equal(t, int64(120), updated.TranscribedSeconds)
}

func TestPostgreSQLUserRepository_TouchLastLogin(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	user.LastLogin = time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, repo.Create(ctx, user))

	at := time.Now().UTC()
	err := repo.TouchLastLogin(ctx, user.ID, at)
	assert.NoError(t, err)

	updated, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, at, updated.LastLogin, time.Second)
}

func TestPostgreSQLUserRepository_EncryptionKeys(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	err := repo.SetEncryptionKeys(ctx, user.ID, "public-pem", "private-pem")
	assert.NoError(t, err)

	withKeys, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, withKeys.EncryptionEnabled)
	assert.Equal(t, "public-pem", withKeys.PublicKeyPEM)
	assert.Equal(t, "private-pem", withKeys.PrivateKeyPEM)

	err = repo.ClearEncryptionKeys(ctx, user.ID)
	assert.NoError(t, err)

	cleared, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, cleared.EncryptionEnabled)
	assert.Empty(t, cleared.PublicKeyPEM)
	assert.Empty(t, cleared.PrivateKeyPEM)
}

func TestPostgreSQLUserRepository_AddTranscribedSeconds(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	user := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.AddTranscribedSeconds(ctx, user.ID, 90))
	require.NoError(t, repo.AddTranscribedSeconds(ctx, user.ID, 30))

	updated, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), updated.TranscribedSeconds)

	err = repo.AddTranscribedSeconds(ctx, uuid.Must(uuid.NewV7()), 10)
	assert.True(t, apperrors.Is(err, domain.ErrUserNotFound))
}

func TestPostgreSQLUserRepository_Stats(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLUserRepository(db)
	ctx := context.Background()

	alice := newPostgresUser("alice")
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.AddTranscribedSeconds(ctx, alice.ID, 100))

	bob := newPostgresUser("bob")
	require.NoError(t, repo.Create(ctx, bob))
	require.NoError(t, repo.AddTranscribedSeconds(ctx, bob.ID, 50))

	// Stale login, excluded from the since window
	carol := newPostgresUser("carol")
	carol.LastLogin = time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, repo.Create(ctx, carol))

	stats, err := repo.Stats(ctx, "example.org", time.Now().UTC().Add(-30*24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(150), stats.TotalTranscribedSeconds)
	assert.Equal(t, int64(100), stats.TranscribedSecondsPerUser["alice"])
	assert.Equal(t, int64(50), stats.TranscribedSecondsPerUser["bob"])
}
