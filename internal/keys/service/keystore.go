// Package service implements key generation and passphrase-protected
// key serialization.
package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/argon2"

	"github.com/SUNET/transcribe-backend/internal/keys/domain"
)

const (
	// MinKeySize is the smallest accepted RSA modulus.
	MinKeySize = 2048
	// DefaultKeySize matches the size used for all newly generated keypairs.
	DefaultKeySize = 4096

	publicKeyPEMType  = "PUBLIC KEY"
	privateKeyPEMType = "TRANSCRIBE ENCRYPTED PRIVATE KEY"

	// argon2id parameters for the passphrase KDF.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32

	saltSize  = 16
	nonceSize = 12
)

// KeyStore generates RSA keypairs and (de)serializes them in PEM form.
// The private key is encrypted with a passphrase-derived key: the PKCS#8
// DER bytes are sealed with AES-256-GCM under an argon2id-derived key,
// with the KDF parameters carried in the PEM headers.
type KeyStore interface {
	// GenerateKeypair creates a new keypair protected by passphrase.
	GenerateKeypair(passphrase string) (*domain.Keypair, error)

	// PublicKey parses a public key PEM.
	PublicKey(publicPEM string) (*rsa.PublicKey, error)

	// PrivateKey decrypts and parses a private key PEM.
	// Returns domain.ErrWrongPassphrase when the passphrase does not
	// unlock the key and domain.ErrMalformedKey on parse failures.
	PrivateKey(privatePEM, passphrase string) (*rsa.PrivateKey, error)

	// ValidatePassphrase reports whether the passphrase unlocks the key.
	ValidatePassphrase(privatePEM, passphrase string) (bool, error)
}

// keyStore implements KeyStore.
type keyStore struct {
	keySize int
}

// NewKeyStore creates a KeyStore generating keys of the given size.
func NewKeyStore(keySize int) (KeyStore, error) {
	if keySize < MinKeySize {
		return nil, domain.ErrInvalidKeySize
	}
	return &keyStore{keySize: keySize}, nil
}

// GenerateKeypair creates a new RSA keypair protected by passphrase.
func (k *keyStore) GenerateKeypair(passphrase string) (*domain.Keypair, error) {
	if passphrase == "" {
		return nil, domain.ErrEmptyPassphrase
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, k.keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	publicPEM, err := encodePublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	privatePEM, err := encodePrivateKey(privateKey, passphrase)
	if err != nil {
		return nil, err
	}

	return &domain.Keypair{
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: privatePEM,
	}, nil
}

// PublicKey parses a PKIX public key PEM.
func (k *keyStore) PublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil || block.Type != publicKeyPEMType {
		return nil, domain.ErrMalformedKey
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, domain.ErrMalformedKey
	}

	publicKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, domain.ErrMalformedKey
	}

	return publicKey, nil
}

// PrivateKey decrypts and parses a private key PEM.
func (k *keyStore) PrivateKey(privatePEM, passphrase string) (*rsa.PrivateKey, error) {
	if passphrase == "" {
		return nil, domain.ErrEmptyPassphrase
	}

	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil || block.Type != privateKeyPEMType {
		return nil, domain.ErrMalformedKey
	}

	salt, err := decodeHeader(block, "Salt", saltSize)
	if err != nil {
		return nil, err
	}
	nonce, err := decodeHeader(block, "Nonce", nonceSize)
	if err != nil {
		return nil, err
	}
	if block.Headers["KDF"] != "argon2id" {
		return nil, domain.ErrMalformedKey
	}

	kdfTime, kdfMemory, kdfThreads, err := kdfParams(block)
	if err != nil {
		return nil, err
	}

	sealKey := argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemory, kdfThreads, argonKeyLen)

	aead, err := newGCM(sealKey)
	if err != nil {
		return nil, err
	}

	der, err := aead.Open(nil, nonce, block.Bytes, nil)
	if err != nil {
		// Authentication failure: the passphrase is wrong (or the
		// ciphertext was tampered with, which is indistinguishable).
		return nil, domain.ErrWrongPassphrase
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, domain.ErrMalformedKey
	}

	privateKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.ErrMalformedKey
	}

	return privateKey, nil
}

// ValidatePassphrase reports whether the passphrase unlocks the key.
func (k *keyStore) ValidatePassphrase(privatePEM, passphrase string) (bool, error) {
	_, err := k.PrivateKey(privatePEM, passphrase)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrWrongPassphrase) {
		return false, nil
	}
	return false, err
}

func encodePublicKey(publicKey *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  publicKeyPEMType,
		Bytes: der,
	})), nil
}

func encodePrivateKey(privateKey *rsa.PrivateKey, passphrase string) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealKey := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	aead, err := newGCM(sealKey)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, der, nil)

	return string(pem.EncodeToMemory(&pem.Block{
		Type: privateKeyPEMType,
		Headers: map[string]string{
			"KDF":            "argon2id",
			"Salt":           base64.StdEncoding.EncodeToString(salt),
			"Nonce":          base64.StdEncoding.EncodeToString(nonce),
			"Argon2-Time":    strconv.Itoa(argonTime),
			"Argon2-Memory":  strconv.Itoa(argonMemory),
			"Argon2-Threads": strconv.Itoa(argonThreads),
		},
		Bytes: sealed,
	})), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func decodeHeader(block *pem.Block, name string, wantLen int) ([]byte, error) {
	value, ok := block.Headers[name]
	if !ok {
		return nil, domain.ErrMalformedKey
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(decoded) != wantLen {
		return nil, domain.ErrMalformedKey
	}
	return decoded, nil
}

func kdfParams(block *pem.Block) (uint32, uint32, uint8, error) {
	kdfTime, err := strconv.ParseUint(block.Headers["Argon2-Time"], 10, 32)
	if err != nil {
		return 0, 0, 0, domain.ErrMalformedKey
	}
	kdfMemory, err := strconv.ParseUint(block.Headers["Argon2-Memory"], 10, 32)
	if err != nil {
		return 0, 0, 0, domain.ErrMalformedKey
	}
	kdfThreads, err := strconv.ParseUint(block.Headers["Argon2-Threads"], 10, 8)
	if err != nil {
		return 0, 0, 0, domain.ErrMalformedKey
	}
	// argon2.IDKey panics on zero time or parallelism.
	if kdfTime == 0 || kdfMemory == 0 || kdfThreads == 0 {
		return 0, 0, 0, domain.ErrMalformedKey
	}
	return uint32(kdfTime), uint32(kdfMemory), uint8(kdfThreads), nil
}
