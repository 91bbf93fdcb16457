package service

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/vault/domain"
)

// RangeNotSatisfiableError reports a range whose start lies at or beyond the
// available plaintext. It carries the available size so HTTP layers can emit
// the "bytes */N" Content-Range a 416 response requires.
type RangeNotSatisfiableError struct {
	AvailableSize int64
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("requested range not satisfiable against %d available bytes", e.AvailableSize)
}

func (e *RangeNotSatisfiableError) Unwrap() error {
	return apperrors.ErrRangeNotSatisfiable
}

// ResolvedRange maps an HTTP byte range onto chunk coordinates. Start and
// End are inclusive plaintext offsets; StartChunk through EndChunk are the
// chunks that must be decrypted to satisfy them.
type ResolvedRange struct {
	Start int64
	End   int64

	StartChunk int64
	EndChunk   int64

	// OffsetInFirstChunk is how many leading bytes of the first decrypted
	// chunk fall before Start and must be dropped.
	OffsetInFirstChunk int64

	// BytesInLastChunk is how many bytes of the last yielded slice to keep,
	// counted after OffsetInFirstChunk has been applied. When the range sits
	// inside a single chunk both trims compose here, so this equals
	// End-Start+1; otherwise it is End%chunkSize+1.
	BytesInLastChunk int64
}

// Length returns the number of plaintext bytes the range covers.
func (r *ResolvedRange) Length() int64 {
	return r.End - r.Start + 1
}

// ResolveRange translates a Range header into chunk coordinates against the
// available plaintext size. No I/O, no cryptography.
//
// An absent or malformed header resolves to the full file. An open-ended
// "bytes=A-" runs to the last byte; an explicit end is clamped to the
// available size. A start at or beyond the available size is a hard
// ErrRangeNotSatisfiable, never a silent clamp.
func ResolveRange(header string, availableSize int64, chunkSize int) (*ResolvedRange, error) {
	if chunkSize < 1 {
		return nil, domain.ErrInvalidChunkSize
	}
	if availableSize < 1 {
		return nil, &RangeNotSatisfiableError{AvailableSize: 0}
	}

	start, end, ok := parseRangeHeader(header)
	if !ok {
		start, end = 0, availableSize-1
	} else {
		if start >= availableSize {
			return nil, &RangeNotSatisfiableError{AvailableSize: availableSize}
		}
		if end < 0 || end > availableSize-1 {
			end = availableSize - 1
		}
	}

	cs := int64(chunkSize)
	resolved := &ResolvedRange{
		Start:              start,
		End:                end,
		StartChunk:         start / cs,
		EndChunk:           end / cs,
		OffsetInFirstChunk: start % cs,
	}
	if resolved.StartChunk == resolved.EndChunk {
		resolved.BytesInLastChunk = end - start + 1
	} else {
		resolved.BytesInLastChunk = end%cs + 1
	}
	return resolved, nil
}

// ValidRangeHeader reports whether header is a parseable single byte range.
// Callers serve anything else as a plain full-file response rather than a
// partial one.
func ValidRangeHeader(header string) bool {
	_, _, ok := parseRangeHeader(header)
	return ok
}

// parseRangeHeader parses "bytes=A-B" or "bytes=A-". It returns ok=false
// for anything else, including suffix ranges and multi-range headers, which
// callers treat as a full-file request. end is -1 for an open-ended range.
func parseRangeHeader(header string) (start, end int64, ok bool) {
	header = strings.TrimSpace(header)
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}

	first, last, found := strings.Cut(spec, "-")
	if !found || strings.Contains(last, ",") {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	last = strings.TrimSpace(last)
	if last == "" {
		return start, -1, true
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end, true
}
