package service

import (
	"bufio"
	"crypto/rsa"
	"encoding/binary"
	"encoding/hex"
	"io"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/vault/domain"
)

// Container layout (FormatSized): an 8-byte big-endian declared plaintext
// size, then zero or more records of 4-byte big-endian encoded-envelope
// length followed by the hex-encoded envelope. FormatLegacy omits the size
// header. Chunk order in the file equals plaintext offset order; chunk N
// covers plaintext bytes [N*chunkSize, min((N+1)*chunkSize, size)).

// Refuse length prefixes beyond any envelope a sane chunk size can produce
// rather than allocating blindly for garbage input.
const maxEncodedEnvelopeLen = 1 << 27

// WriteContainer encrypts plaintext into a sized container on w. One
// symmetric key is generated for the whole container; each chunkSize slice
// is sealed with a fresh nonce. declaredSize is recorded in the header and
// should be the plaintext length the caller expects to write.
func WriteContainer(w io.Writer, publicKey *rsa.PublicKey, plaintext io.Reader, declaredSize int64, chunkSize int) error {
	if chunkSize < 1 {
		return domain.ErrInvalidChunkSize
	}
	if declaredSize < 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "negative declared size")
	}

	sealer, err := NewSealer(publicKey)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	var header [domain.SizeHeaderLen]byte
	binary.BigEndian.PutUint64(header[:], uint64(declaredSize))
	if _, err := bw.Write(header[:]); err != nil {
		return apperrors.Wrap(err, "failed to write size header")
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(plaintext, buf)
		if n > 0 {
			envelope, err := sealer.Seal(buf[:n])
			if err != nil {
				return err
			}
			if err := writeRecord(bw, envelope); err != nil {
				return err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return apperrors.Wrap(readErr, "failed to read plaintext")
		}
	}

	if err := bw.Flush(); err != nil {
		return apperrors.Wrap(err, "failed to flush container")
	}
	return nil
}

func writeRecord(w io.Writer, envelope []byte) error {
	encoded := hex.EncodeToString(envelope)

	var prefix [domain.LengthPrefixLen]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(encoded)))
	if _, err := w.Write(prefix[:]); err != nil {
		return apperrors.Wrap(err, "failed to write length prefix")
	}
	if _, err := io.WriteString(w, encoded); err != nil {
		return apperrors.Wrap(err, "failed to write envelope")
	}
	return nil
}

// ContainerReader reads chunks back out of a container. Leading chunks can
// be skipped without any cryptographic work via Skip; Next decrypts and
// returns the next chunk in offset order.
type ContainerReader struct {
	r            *bufio.Reader
	opener       *Opener
	format       domain.Format
	declaredSize int64
}

// NewContainerReader wraps r as a container of the given format. For
// FormatSized the declared-size header is consumed immediately; a missing
// or truncated header is a corrupt container.
func NewContainerReader(r io.Reader, privateKey *rsa.PrivateKey, format domain.Format) (*ContainerReader, error) {
	if !format.IsValid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown container format %d", format)
	}

	cr := &ContainerReader{
		r:      bufio.NewReader(r),
		opener: NewOpener(privateKey),
		format: format,
	}

	if format == domain.FormatSized {
		size, err := readSizeHeader(cr.r)
		if err != nil {
			return nil, err
		}
		cr.declaredSize = size
	}
	return cr, nil
}

// DeclaredSize returns the size recorded in the container header. The
// second return is false for legacy containers, which carry no header.
func (cr *ContainerReader) DeclaredSize() (int64, bool) {
	return cr.declaredSize, cr.format == domain.FormatSized
}

// Skip discards the next n chunks using only their length prefixes; the
// skipped envelopes are never decrypted. Reaching end-of-file during a skip
// is not an error, but a chunk body shorter than its prefix is.
func (cr *ContainerReader) Skip(n int64) error {
	for ; n > 0; n-- {
		length, err := cr.readPrefix()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := io.CopyN(io.Discard, cr.r, int64(length)); err != nil {
			return apperrors.Wrap(domain.ErrCorruptContainer, "truncated chunk body")
		}
	}
	return nil
}

// Next decrypts and returns the next chunk. It returns io.EOF when the
// container ends cleanly at a record boundary.
func (cr *ContainerReader) Next() ([]byte, error) {
	length, err := cr.readPrefix()
	if err != nil {
		return nil, err
	}

	encoded := make([]byte, length)
	if _, err := io.ReadFull(cr.r, encoded); err != nil {
		return nil, apperrors.Wrap(domain.ErrCorruptContainer, "truncated chunk body")
	}

	envelope := make([]byte, hex.DecodedLen(int(length)))
	if _, err := hex.Decode(envelope, encoded); err != nil {
		return nil, apperrors.Wrap(domain.ErrCorruptContainer, "envelope is not valid hex")
	}

	return cr.opener.Open(envelope)
}

// readPrefix reads one length prefix. Fewer than four bytes remaining ends
// iteration with io.EOF; only a chunk body shorter than its prefix counts
// as corruption.
func (cr *ContainerReader) readPrefix() (uint32, error) {
	var prefix [domain.LengthPrefixLen]byte
	if _, err := io.ReadFull(cr.r, prefix[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, io.EOF
		}
		return 0, apperrors.Wrap(err, "failed to read length prefix")
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 || length > maxEncodedEnvelopeLen {
		return 0, apperrors.Wrapf(domain.ErrCorruptContainer, "implausible envelope length %d", length)
	}
	return length, nil
}

// DeclaredSize reads only the size header of a sized container.
func DeclaredSize(r io.Reader) (int64, error) {
	return readSizeHeader(r)
}

func readSizeHeader(r io.Reader) (int64, error) {
	var header [domain.SizeHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, apperrors.Wrap(domain.ErrCorruptContainer, "missing size header")
	}
	size := binary.BigEndian.Uint64(header[:])
	if size > uint64(1)<<62 {
		return 0, apperrors.Wrapf(domain.ErrCorruptContainer, "implausible declared size %d", size)
	}
	return int64(size), nil
}

// ActualAvailableSize walks a container counting complete chunks, without
// decrypting any of them, and returns how many plaintext bytes are genuinely
// recoverable. A container left partially written by an interrupted upload
// yields the size of its complete prefix rather than an error; a trailing
// incomplete record is simply not counted.
//
// For sized containers: when the chunk count covers the declared size the
// declared size is trusted; otherwise every complete chunk counts at full
// size, the last one bounded by what the original file contributed at that
// offset. For legacy containers the last chunk's plaintext length is derived
// from its envelope length, which needs the RSA key size in bytes.
func ActualAvailableSize(r io.Reader, format domain.Format, chunkSize int, rsaKeyBytes int) (int64, error) {
	if chunkSize < 1 {
		return 0, domain.ErrInvalidChunkSize
	}

	br := bufio.NewReader(r)

	var declared int64
	if format == domain.FormatSized {
		size, err := readSizeHeader(br)
		if err != nil {
			return 0, err
		}
		declared = size
	} else if !format.IsValid() {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown container format %d", format)
	}

	var chunks int64
	var lastEncodedLen uint32
	for {
		var prefix [domain.LengthPrefixLen]byte
		if _, err := io.ReadFull(br, prefix[:]); err != nil {
			break
		}
		length := binary.BigEndian.Uint32(prefix[:])
		if length == 0 || length > maxEncodedEnvelopeLen {
			return 0, apperrors.Wrapf(domain.ErrCorruptContainer, "implausible envelope length %d", length)
		}
		if _, err := io.CopyN(io.Discard, br, int64(length)); err != nil {
			// Incomplete trailing record: the write was interrupted here.
			break
		}
		chunks++
		lastEncodedLen = length
	}

	if chunks == 0 {
		return 0, nil
	}

	cs := int64(chunkSize)
	if format == domain.FormatSized {
		implied := (declared + cs - 1) / cs
		if chunks >= implied {
			return declared, nil
		}
		lastChunkStart := (chunks - 1) * cs
		remaining := declared - lastChunkStart
		if remaining > cs {
			remaining = cs
		}
		return lastChunkStart + remaining, nil
	}

	lastPlain := int64(lastEncodedLen)/2 - int64(rsaKeyBytes) - domain.NonceSize - domain.TagSize
	if lastPlain < 0 {
		return 0, apperrors.Wrap(domain.ErrCorruptContainer, "envelope shorter than its overhead")
	}
	if lastPlain > cs {
		lastPlain = cs
	}
	return (chunks-1)*cs + lastPlain, nil
}
