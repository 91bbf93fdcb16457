// Package service implements the chunked hybrid-encryption storage codec:
// the per-chunk RSA+AES cipher, the container reader/writer, the byte-range
// to chunk-coordinate resolver, and the streaming assembler that ties them
// together for HTTP range requests.
package service

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"

	apperrors "github.com/SUNET/transcribe-backend/internal/errors"
	"github.com/SUNET/transcribe-backend/internal/vault/domain"
)

// Envelope layout: wrapped_key(RSA key-size bytes) || nonce(12) || AES-GCM
// ciphertext-with-tag. The RSA modulus size is the only thing that tells the
// decoder where the wrapped key ends, so encryptor and decryptor must share
// one deployment-wide key size.

// Sealer encrypts chunks for a single container. The AES-256 key is
// generated and RSA-wrapped once at construction; every Seal call reuses it
// with a fresh random nonce, which amortizes the RSA cost to once per
// container. Nonce reuse under the shared key is never permitted.
//
// A Sealer is not safe for concurrent use; each container writer owns one.
type Sealer struct {
	aead       cipher.AEAD
	wrappedKey []byte
}

// NewSealer generates a fresh symmetric key, wraps it with the recipient's
// public key using RSA-OAEP with SHA-256, and returns a Sealer ready to
// encrypt chunks for one container.
func NewSealer(publicKey *rsa.PublicKey) (*Sealer, error) {
	key := make([]byte, domain.SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate symmetric key")
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, key, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to wrap symmetric key")
	}

	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead, wrappedKey: wrapped}, nil
}

// Seal encrypts one plaintext chunk under the container's shared key with a
// fresh nonce and returns the raw envelope bytes.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, domain.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate nonce")
	}

	envelope := make([]byte, 0, len(s.wrappedKey)+domain.NonceSize+len(plaintext)+domain.TagSize)
	envelope = append(envelope, s.wrappedKey...)
	envelope = append(envelope, nonce...)
	envelope = s.aead.Seal(envelope, nonce, plaintext, nil)
	return envelope, nil
}

// Opener decrypts envelopes for a single private key. It caches the
// unwrapped symmetric key of the most recently seen wrapped key, so reading
// a container (where every chunk carries the same wrapped key) performs the
// expensive RSA unwrap only once.
//
// An Opener is not safe for concurrent use; each container reader owns one.
type Opener struct {
	privateKey *rsa.PrivateKey

	lastWrapped []byte
	aead        cipher.AEAD
}

// NewOpener returns an Opener for the given private key.
func NewOpener(privateKey *rsa.PrivateKey) *Opener {
	return &Opener{privateKey: privateKey}
}

// Open splits an envelope at the RSA key-size boundary, unwraps the
// symmetric key (or reuses the cached one), and verifies and decrypts the
// chunk. A failed unwrap or a failed tag verification both report
// ErrAuthenticationFailed: tampering and a wrong key are indistinguishable.
func (o *Opener) Open(envelope []byte) ([]byte, error) {
	keyLen := o.privateKey.Size()
	if len(envelope) < keyLen+domain.NonceSize+domain.TagSize {
		return nil, apperrors.Wrapf(domain.ErrCorruptContainer,
			"envelope too short: %d bytes", len(envelope))
	}

	wrapped := envelope[:keyLen]
	nonce := envelope[keyLen : keyLen+domain.NonceSize]
	ciphertext := envelope[keyLen+domain.NonceSize:]

	if o.aead == nil || !bytes.Equal(wrapped, o.lastWrapped) {
		key, err := rsa.DecryptOAEP(sha256.New(), nil, o.privateKey, wrapped, nil)
		if err != nil {
			return nil, domain.ErrAuthenticationFailed
		}
		aead, err := newAESGCM(key)
		if err != nil {
			return nil, err
		}
		o.aead = aead
		o.lastWrapped = bytes.Clone(wrapped)
	}

	plaintext, err := o.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Encrypt is the one-shot form of Sealer for standalone blobs such as
// transcript strings: a fresh symmetric key is wrapped per call.
func Encrypt(publicKey *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	sealer, err := NewSealer(publicKey)
	if err != nil {
		return nil, err
	}
	return sealer.Seal(plaintext)
}

// Decrypt is the one-shot form of Opener.
func Decrypt(privateKey *rsa.PrivateKey, envelope []byte) ([]byte, error) {
	return NewOpener(privateKey).Open(envelope)
}

// EncryptString encrypts a string and returns the envelope base64-encoded.
// Short strings use a bare envelope, not the container framing; the two
// formats must not be conflated.
func EncryptString(publicKey *rsa.PublicKey, plaintext string) (string, error) {
	envelope, err := Encrypt(publicKey, []byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// DecryptString decrypts a base64-encoded envelope produced by EncryptString.
func DecryptString(privateKey *rsa.PrivateKey, encoded string) (string, error) {
	envelope, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "invalid base64 envelope")
	}
	plaintext, err := Decrypt(privateKey, envelope)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create GCM")
	}
	return aead, nil
}
