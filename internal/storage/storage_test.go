package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() {
		_ = bucket.Close()
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(bucket, logger)
}

func TestStore_WriteAndReadAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WriteAll(ctx, "users/alice/media.bin", []byte("payload"))
	require.NoError(t, err)

	data, err := store.ReadAll(ctx, "users/alice/media.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestStore_ReadMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ReadAll(context.Background(), "users/alice/missing.bin")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStore_NewReaderStreamsContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "k", []byte("streamed content")))

	reader, err := store.NewReader(ctx, "k")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, reader.Close())
	}()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "streamed content", string(data))
}

func TestStore_NewRangeReader(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "k", []byte("0123456789")))

	reader, err := store.NewRangeReader(ctx, "k", 2, 6)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "234567", string(data))

	// Negative length reads to the end.
	reader, err = store.NewRangeReader(ctx, "k", 6, -1)
	require.NoError(t, err)
	data, err = io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "6789", string(data))
}

func TestStore_NewRangeReaderMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.NewRangeReader(context.Background(), "missing", 0, 4)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStore_WriterVisibleOnlyAfterClose(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	writer, err := store.NewWriter(ctx, "k")
	require.NoError(t, err)

	_, err = writer.Write([]byte("partial"))
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists, "object should not be visible before Close")

	require.NoError(t, writer.Close())

	exists, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_Size(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "k", []byte("12345")))

	size, err := store.Size(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestStore_SizeMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Size(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "k", []byte("x")))
	require.NoError(t, store.Delete(ctx, "k"))

	exists, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_DeleteMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStore_DeletePrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "users/alice/a.bin", []byte("a")))
	require.NoError(t, store.WriteAll(ctx, "users/alice/b.bin", []byte("b")))
	require.NoError(t, store.WriteAll(ctx, "users/bob/c.bin", []byte("c")))

	deleted, err := store.DeletePrefix(ctx, "users/alice/")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	exists, err := store.Exists(ctx, "users/bob/c.bin")
	require.NoError(t, err)
	assert.True(t, exists, "objects outside the prefix must survive")
}

func TestStore_DeletePrefixEmpty(t *testing.T) {
	store := newTestStore(t)

	deleted, err := store.DeletePrefix(context.Background(), "users/nobody/")
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestStore_DeleteMatchingSuffix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAll(ctx, "users/alice/a.mp4.enc", []byte("a")))
	require.NoError(t, store.WriteAll(ctx, "users/alice/b.mp4", []byte("b")))
	require.NoError(t, store.WriteAll(ctx, "users/alice/c.mp4.enc", []byte("c")))

	deleted, err := store.DeleteMatching(ctx, "users/alice/", ".enc")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	exists, err := store.Exists(ctx, "users/alice/b.mp4")
	require.NoError(t, err)
	assert.True(t, exists, "plaintext objects must survive an encrypted purge")
}
