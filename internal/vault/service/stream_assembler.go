package service

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/SUNET/transcribe-backend/internal/vault/domain"
)

// OpenContainerFunc opens a fresh reader over the container bytes. The
// assembler calls it twice per stream: once to measure the available size
// and once to read the selected chunks.
type OpenContainerFunc func(ctx context.Context) (io.ReadCloser, error)

// StreamAssembler composes the range resolver and the container reader into
// a lazy plaintext stream satisfying an HTTP Range request, or the full file
// when no range is given.
type StreamAssembler struct {
	chunkSize int
	logger    *slog.Logger
}

// NewStreamAssembler creates an assembler for containers written with the
// given chunk size.
func NewStreamAssembler(chunkSize int, logger *slog.Logger) (*StreamAssembler, error) {
	if chunkSize < 1 {
		return nil, domain.ErrInvalidChunkSize
	}
	return &StreamAssembler{chunkSize: chunkSize, logger: logger}, nil
}

// Stream is one resolved range over a container. Body yields ready-to-send
// plaintext in offset order; it is single-pass and must be closed.
type Stream struct {
	// Start and End are the inclusive plaintext offsets actually served.
	Start int64
	End   int64

	// TotalSize is the recoverable plaintext size of the container, which
	// may be less than the declared size for a partially written file.
	TotalSize int64

	Body io.ReadCloser
}

// Length returns the number of body bytes.
func (s *Stream) Length() int64 {
	return s.End - s.Start + 1
}

// ContentRange returns the Content-Range header value for the stream.
func (s *Stream) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, s.TotalSize)
}

// Stream resolves rangeHeader against the container's recoverable size,
// skips the chunks before the range without decrypting them, and returns a
// lazy body covering exactly the requested bytes. Chunks after the range
// are never read. Decryption happens on demand as the body is consumed, and
// stops as soon as ctx is cancelled.
func (a *StreamAssembler) Stream(ctx context.Context, privateKey *rsa.PrivateKey, format domain.Format, open OpenContainerFunc, rangeHeader string) (*Stream, error) {
	available, err := a.measure(ctx, privateKey, format, open)
	if err != nil {
		return nil, err
	}

	if available == 0 {
		if _, _, ok := parseRangeHeader(rangeHeader); ok {
			return nil, &RangeNotSatisfiableError{AvailableSize: 0}
		}
		return &Stream{Start: 0, End: -1, TotalSize: 0, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}

	resolved, err := ResolveRange(rangeHeader, available, a.chunkSize)
	if err != nil {
		return nil, err
	}

	rc, err := open(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := NewContainerReader(rc, privateKey, format)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if err := reader.Skip(resolved.StartChunk); err != nil {
		rc.Close()
		return nil, err
	}

	a.logger.Debug(
		"streaming container range",
		slog.Int64("start", resolved.Start),
		slog.Int64("end", resolved.End),
		slog.Int64("start_chunk", resolved.StartChunk),
		slog.Int64("end_chunk", resolved.EndChunk),
		slog.Int64("available_size", available),
	)

	return &Stream{
		Start:     resolved.Start,
		End:       resolved.End,
		TotalSize: available,
		Body: &rangeBody{
			ctx:        ctx,
			reader:     reader,
			closer:     rc,
			chunksLeft: resolved.EndChunk - resolved.StartChunk + 1,
			offset:     resolved.OffsetInFirstChunk,
			lastKeep:   resolved.BytesInLastChunk,
		},
	}, nil
}

func (a *StreamAssembler) measure(ctx context.Context, privateKey *rsa.PrivateKey, format domain.Format, open OpenContainerFunc) (int64, error) {
	rc, err := open(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	return ActualAvailableSize(rc, format, a.chunkSize, privateKey.Size())
}

// rangeBody decrypts chunks on demand. The first chunk is trimmed by the
// resolved offset; the last yielded slice is cut to the resolved byte count.
// When the range sits inside one chunk the same slice gets both trims.
type rangeBody struct {
	ctx    context.Context
	reader *ContainerReader
	closer io.Closer

	chunksLeft int64
	offset     int64
	lastKeep   int64

	buf       []byte
	err       error
	closeOnce sync.Once
}

func (b *rangeBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		if err := b.fill(); err != nil {
			b.err = err
			b.Close()
			return 0, err
		}
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *rangeBody) fill() error {
	if b.chunksLeft == 0 {
		return io.EOF
	}
	if err := b.ctx.Err(); err != nil {
		return err
	}

	chunk, err := b.reader.Next()
	if err != nil {
		// io.EOF here means the container ended before the resolved range;
		// the range was checked against the available size, so a writer
		// racing us is the only way in. Surface it as a clean end.
		return err
	}

	if b.offset > 0 {
		if b.offset >= int64(len(chunk)) {
			chunk = nil
		} else {
			chunk = chunk[b.offset:]
		}
		b.offset = 0
	}

	b.chunksLeft--
	if b.chunksLeft == 0 && int64(len(chunk)) > b.lastKeep {
		chunk = chunk[:b.lastKeep]
	}

	b.buf = chunk
	return nil
}

func (b *rangeBody) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.closer.Close()
	})
	return err
}
