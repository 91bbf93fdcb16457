// Package domain defines the constants, formats, and errors of the
// encrypted container codec.
package domain

const (
	// SymmetricKeySize is the AES-256 key size in bytes. One symmetric key
	// is generated per container and shared by all of its chunks.
	SymmetricKeySize = 32

	// NonceSize is the AES-GCM nonce size in bytes. A fresh nonce is drawn
	// for every chunk even though the key is shared.
	NonceSize = 12

	// TagSize is the AES-GCM authentication tag size in bytes, appended to
	// each chunk's ciphertext.
	TagSize = 16

	// SizeHeaderLen is the length of the big-endian declared-size header
	// that leads a sized container.
	SizeHeaderLen = 8

	// LengthPrefixLen is the length of the big-endian length prefix that
	// precedes every encoded envelope in a container.
	LengthPrefixLen = 4

	// DefaultChunkSize is the plaintext chunk size used when writing
	// containers. All parties must use the same chunk size for a given
	// container; it is a deployment-wide setting, not per-file metadata.
	DefaultChunkSize = 1 << 20
)

// Format identifies the on-disk container layout. The format is stored out
// of band on the owning record; readers never sniff the file.
type Format int

const (
	// FormatLegacy is the headerless layout: length-prefixed envelopes only,
	// with no declared size. The recoverable size is inferred from the chunk
	// count and the last envelope's length.
	FormatLegacy Format = 1

	// FormatSized is the canonical layout: an 8-byte big-endian declared
	// plaintext size followed by length-prefixed envelopes.
	FormatSized Format = 2
)

// IsValid reports whether f is a known container format.
func (f Format) IsValid() bool {
	return f == FormatLegacy || f == FormatSized
}
