// Package storage provides blob storage access using gocloud.dev/blob.
// Media containers and transcript results are stored as objects under
// per-user prefixes; the bucket backend is selected by URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"

	// Register blob drivers. fileblob serves local disk deployments,
	// memblob serves tests.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Store wraps a blob bucket with error mapping and prefix operations.
type Store struct {
	bucket *blob.Bucket
	logger *slog.Logger
}

// Open opens the bucket identified by bucketURL.
// Supports: file://, mem:// (and any other registered gocloud.dev driver).
func Open(ctx context.Context, bucketURL string, logger *slog.Logger) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", bucketURL, err)
	}
	return NewStore(bucket, logger), nil
}

// NewStore creates a Store over an already-open bucket.
func NewStore(bucket *blob.Bucket, logger *slog.Logger) *Store {
	return &Store{bucket: bucket, logger: logger}
}

// NewReader opens the object at key for reading.
func (s *Store) NewReader(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, mapError(err, key)
	}
	return reader, nil
}

// NewRangeReader opens the object at key for reading length bytes starting
// at offset. A negative length reads to the end of the object.
func (s *Store) NewRangeReader(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	reader, err := s.bucket.NewRangeReader(ctx, key, offset, length, nil)
	if err != nil {
		return nil, mapError(err, key)
	}
	return reader, nil
}

// NewWriter opens the object at key for writing. The object becomes
// visible only after Close; aborted writes leave the previous object
// (if any) untouched.
func (s *Store) NewWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	writer, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return nil, mapError(err, key)
	}
	return writer, nil
}

// ReadAll returns the full contents of the object at key.
func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, mapError(err, key)
	}
	return data, nil
}

// WriteAll writes data to the object at key.
func (s *Store) WriteAll(ctx context.Context, key string, data []byte) error {
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return mapError(err, key)
	}
	return nil
}

// Exists reports whether an object exists at key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, mapError(err, key)
	}
	return exists, nil
}

// Size returns the stored size of the object at key.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return 0, mapError(err, key)
	}
	return attrs.Size, nil
}

// Delete removes the object at key. Deleting a missing object returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		return mapError(err, key)
	}
	return nil
}

// DeletePrefix removes every object under prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return s.DeleteMatching(ctx, prefix, "")
}

// DeleteMatching removes every object under prefix whose key ends with
// suffix. An empty suffix matches everything. Used when a user's keypair
// is rotated and their encrypted containers become unreadable.
// Deletes run concurrently; the returned count reflects completed deletes.
func (s *Store) DeleteMatching(ctx context.Context, prefix, suffix string) (int, error) {
	var deleted atomic.Int64
	g, ectx := errgroup.WithContext(ctx)
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})

	for {
		obj, err := iter.Next(ectx)
		if err == io.EOF {
			break
		}
		if err != nil {
			waitErr := g.Wait()
			return int(deleted.Load()), errors.Join(
				fmt.Errorf("failed to list objects under %q: %w", prefix, err), waitErr,
			)
		}
		if obj.IsDir {
			continue
		}
		if suffix != "" && !strings.HasSuffix(obj.Key, suffix) {
			continue
		}

		key := obj.Key
		g.Go(func() error {
			if err := s.bucket.Delete(ectx, key); err != nil {
				return mapError(err, key)
			}
			deleted.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(deleted.Load()), err
	}

	s.logger.Info("deleted objects",
		slog.String("prefix", prefix),
		slog.Int64("count", deleted.Load()))

	return int(deleted.Load()), nil
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// mapError converts gocloud errors to application errors.
func mapError(err error, key string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return apperrors.Wrapf(apperrors.ErrNotFound, "object %q", key)
	}
	return fmt.Errorf("storage operation on %q failed: %w", key, err)
}
