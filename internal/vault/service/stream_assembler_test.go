package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/vault/domain"
)

type countingCloser struct {
	io.Reader
	closed int
}

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

// containerSource serves a container from memory and records every reader it
// hands out so tests can assert deterministic handle release.
type containerSource struct {
	data    []byte
	readers []*countingCloser
}

func (s *containerSource) open(ctx context.Context) (io.ReadCloser, error) {
	rc := &countingCloser{Reader: bytes.NewReader(s.data)}
	s.readers = append(s.readers, rc)
	return rc, nil
}

func (s *containerSource) allClosed() bool {
	for _, rc := range s.readers {
		if rc.closed == 0 {
			return false
		}
	}
	return true
}

func newTestAssembler(t *testing.T, chunkSize int) *StreamAssembler {
	t.Helper()
	assembler, err := NewStreamAssembler(chunkSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return assembler
}

func streamBytes(t *testing.T, stream *Stream) []byte {
	t.Helper()
	defer stream.Body.Close()
	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	return data
}

func TestStream_RangeAcrossTwoChunks(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=2-7")
	require.NoError(t, err)

	assert.Equal(t, []byte("234567"), streamBytes(t, stream))
	assert.Equal(t, "bytes 2-7/10", stream.ContentRange())
	assert.Equal(t, int64(6), stream.Length())
	assert.True(t, source.allClosed())
}

func TestStream_SingleByteInsideOneChunk(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=5-5")
	require.NoError(t, err)

	assert.Equal(t, []byte("5"), streamBytes(t, stream))
	assert.Equal(t, "bytes 5-5/10", stream.ContentRange())
}

func TestStream_FullFileWithoutRangeHeader(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "")
	require.NoError(t, err)

	assert.Equal(t, []byte("0123456789"), streamBytes(t, stream))
	assert.Equal(t, int64(0), stream.Start)
	assert.Equal(t, int64(9), stream.End)
	assert.Equal(t, int64(10), stream.TotalSize)
}

func TestStream_EveryRangeMatchesPlaintextSlice(t *testing.T) {
	key := testPrivateKey(t)
	plaintext := []byte("0123456789")

	for _, chunkSize := range []int{1, 3, 4, 16} {
		source := &containerSource{data: buildContainer(t, &key.PublicKey, plaintext, chunkSize)}
		assembler := newTestAssembler(t, chunkSize)

		for start := 0; start < len(plaintext); start++ {
			for end := start; end < len(plaintext); end++ {
				header := fmt.Sprintf("bytes=%d-%d", start, end)
				stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, header)
				require.NoError(t, err, "chunk size %d, %s", chunkSize, header)
				assert.Equal(t, plaintext[start:end+1], streamBytes(t, stream), "chunk size %d, %s", chunkSize, header)
			}
		}
	}
}

func TestStream_RangeBeyondSizeIsNotSatisfiable(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	_, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=10-")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRangeNotSatisfiable)
	assert.True(t, source.allClosed())
}

func TestStream_PartialContainerServesAvailablePrefix(t *testing.T) {
	key := testPrivateKey(t)
	data := buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)
	boundaries := recordBoundaries(t, data)

	// Keep two of three chunks, as an interrupted upload would.
	source := &containerSource{data: data[:boundaries[2]]}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), streamBytes(t, stream))
	assert.Equal(t, int64(8), stream.TotalSize)

	stream, err = assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=2-7")
	require.NoError(t, err)
	assert.Equal(t, []byte("234567"), streamBytes(t, stream))

	_, err = assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=8-")
	assert.ErrorIs(t, err, apperrors.ErrRangeNotSatisfiable)
}

func TestStream_LegacyContainer(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildLegacyContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatLegacy, source.open, "bytes=2-7")
	require.NoError(t, err)
	assert.Equal(t, []byte("234567"), streamBytes(t, stream))
	assert.Equal(t, "bytes 2-7/10", stream.ContentRange())
}

func TestStream_SkippedChunksAreNeverDecrypted(t *testing.T) {
	key := testPrivateKey(t)
	data := buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)
	boundaries := recordBoundaries(t, data)

	// Corrupt the first chunk; a range that starts in the second chunk must
	// still stream, since the leading chunk is skipped by length prefix only.
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	bodyPos := boundaries[0] + domain.LengthPrefixLen
	if corrupted[bodyPos] != 'f' {
		corrupted[bodyPos] = 'f'
	} else {
		corrupted[bodyPos] = '0'
	}

	source := &containerSource{data: corrupted}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=4-9")
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), streamBytes(t, stream))
}

func TestStream_TamperedChunkAbortsBody(t *testing.T) {
	key := testPrivateKey(t)
	data := buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)
	boundaries := recordBoundaries(t, data)

	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	bodyPos := boundaries[1] + domain.LengthPrefixLen
	if corrupted[bodyPos] != 'f' {
		corrupted[bodyPos] = 'f'
	} else {
		corrupted[bodyPos] = '0'
	}

	source := &containerSource{data: corrupted}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "")
	require.NoError(t, err)
	defer stream.Body.Close()

	// The first chunk streams, then the tampered one aborts the body.
	buf := make([]byte, 4)
	_, err = io.ReadFull(stream.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123"), buf)

	_, err = io.ReadAll(stream.Body)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.True(t, source.allClosed())
}

func TestStream_CancellationStopsDecryption(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := assembler.Stream(ctx, key, domain.FormatSized, source.open, "")
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(stream.Body, buf)
	require.NoError(t, err)

	cancel()
	_, err = io.ReadAll(stream.Body)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, source.allClosed())
}

func TestStream_EmptyContainer(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, nil, 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "")
	require.NoError(t, err)
	assert.Empty(t, streamBytes(t, stream))
	assert.Zero(t, stream.Length())

	_, err = assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "bytes=0-3")
	assert.ErrorIs(t, err, apperrors.ErrRangeNotSatisfiable)
}

func TestStream_BodyCloseReleasesContainer(t *testing.T) {
	key := testPrivateKey(t)
	source := &containerSource{data: buildContainer(t, &key.PublicKey, []byte("0123456789"), 4)}
	assembler := newTestAssembler(t, 4)

	stream, err := assembler.Stream(context.Background(), key, domain.FormatSized, source.open, "")
	require.NoError(t, err)

	// Close without draining: the open container reader must be released.
	require.NoError(t, stream.Body.Close())
	assert.True(t, source.allClosed())
}
