package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/job/domain"
	"github.com/SUNET/transcribe-backend/internal/testutil"
)

func newPostgresJob(userID uuid.UUID, filename string) *domain.Job {
	return &domain.Job{
		ID:           uuid.Must(uuid.NewV7()),
		UserID:       userID,
		Status:       domain.StatusUploaded,
		Language:     "en",
		ModelType:    "base",
		Filename:     filename,
		OutputFormat: domain.OutputFormatTXT,
		DeletionDate: time.Now().UTC().Add(domain.RetentionPeriod),
	}
}

func TestNewPostgreSQLJobRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLJobRepository_Create(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")
	job := newPostgresJob(userID, "meeting.mp4")
	job.Encrypted = true
	job.ContainerVersion = domain.ContainerVersionSized

	err := repo.Create(ctx, job)
	assert.NoError(t, err)

	created, err := repo.GetByID(ctx, job.ID)
	assert.NoError(t, err)
	assert.Equal(t, job.ID, created.ID)
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, domain.StatusUploaded, created.Status)
	assert.Equal(t, "meeting.mp4", created.Filename)
	assert.Equal(t, domain.OutputFormatTXT, created.OutputFormat)
	assert.True(t, created.Encrypted)
	assert.Equal(t, domain.ContainerVersionSized, created.ContainerVersion)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.DeletionDate.IsZero())
}

func TestPostgreSQLJobRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	job, err := repo.GetByID(ctx, uuid.Must(uuid.NewV7()))
	assert.Error(t, err)
	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, domain.ErrJobNotFound))
}

func TestPostgreSQLJobRepository_ListByUser(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	aliceID := testutil.CreateTestUser(t, db, "postgres", "alice")
	bobID := testutil.CreateTestUser(t, db, "postgres", "bob")

	first := newPostgresJob(aliceID, "first.mp4")
	require.NoError(t, repo.Create(ctx, first))
	second := newPostgresJob(aliceID, "second.mp4")
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newPostgresJob(bobID, "other.mp4")))

	jobs, err := repo.ListByUser(ctx, aliceID)
	assert.NoError(t, err)
	require.Len(t, jobs, 2)
	// Newest first
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestPostgreSQLJobRepository_Update(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")
	job := newPostgresJob(userID, "meeting.mp4")
	require.NoError(t, repo.Create(ctx, job))

	job.Status = domain.StatusFailed
	job.Error = "whisper crashed"
	job.TranscribedSeconds = 45
	err := repo.Update(ctx, job)
	assert.NoError(t, err)

	updated, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, updated.Status)
	assert.Equal(t, "whisper crashed", updated.Error)
	assert.Equal(t, int64(45), updated.TranscribedSeconds)
}

func TestPostgreSQLJobRepository_Update_NotFound(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")
	job := newPostgresJob(userID, "ghost.mp4")

	err := repo.Update(ctx, job)
	assert.True(t, apperrors.Is(err, domain.ErrJobNotFound))
}

func TestPostgreSQLJobRepository_Delete(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")
	job := newPostgresJob(userID, "meeting.mp4")
	require.NoError(t, repo.Create(ctx, job))

	err := repo.Delete(ctx, job.ID)
	assert.NoError(t, err)

	_, err = repo.GetByID(ctx, job.ID)
	assert.True(t, apperrors.Is(err, domain.ErrJobNotFound))

	err = repo.Delete(ctx, job.ID)
	assert.True(t, apperrors.Is(err, domain.ErrJobNotFound))
}

func TestPostgreSQLJobRepository_DeleteEncryptedByUser(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")

	encrypted := newPostgresJob(userID, "secret.mp4")
	encrypted.Encrypted = true
	encrypted.ContainerVersion = domain.ContainerVersionSized
	require.NoError(t, repo.Create(ctx, encrypted))

	plain := newPostgresJob(userID, "open.mp4")
	require.NoError(t, repo.Create(ctx, plain))

	affected, err := repo.DeleteEncryptedByUser(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = repo.GetByID(ctx, encrypted.ID)
	assert.True(t, apperrors.Is(err, domain.ErrJobNotFound))

	_, err = repo.GetByID(ctx, plain.ID)
	assert.NoError(t, err)
}

func TestPostgreSQLJobRepository_ListExpired(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")

	expired := newPostgresJob(userID, "old.mp4")
	expired.DeletionDate = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, expired))

	fresh := newPostgresJob(userID, "new.mp4")
	require.NoError(t, repo.Create(ctx, fresh))

	jobs, err := repo.ListExpired(ctx, time.Now().UTC())
	assert.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, expired.ID, jobs[0].ID)
}

func TestPostgreSQLJobRepository_ListStale(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLJobRepository(db)
	ctx := context.Background()

	userID := testutil.CreateTestUser(t, db, "postgres", "alice")

	stale := newPostgresJob(userID, "stuck.mp4")
	stale.Status = domain.StatusInProgress
	require.NoError(t, repo.Create(ctx, stale))

	terminal := newPostgresJob(userID, "done.mp4")
	terminal.Status = domain.StatusCompleted
	require.NoError(t, repo.Create(ctx, terminal))

	active := newPostgresJob(userID, "running.mp4")
	active.Status = domain.StatusInProgress
	require.NoError(t, repo.Create(ctx, active))

	// Backdate the stuck and completed jobs past the staleness cutoff
	for _, id := range []uuid.UUID{stale.ID, terminal.ID} {
		_, err := db.ExecContext(ctx,
			`UPDATE jobs SET updated_at = NOW() - INTERVAL '48 hours' WHERE id = $1`, id)
		require.NoError(t, err)
	}

	jobs, err := repo.ListStale(ctx, time.Now().UTC().Add(-24*time.Hour))
	assert.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stale.ID, jobs[0].ID)
}
