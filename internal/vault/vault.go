package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"

	"github.com/yourorg/gatehouse/internal/domain"
)

// Vault encrypts recoverable identifiers (national IDs) and hashes one-way
// secrets (passwords, secret codes). It is constructed once at startup from
// the master key and is read-only afterwards, safe for concurrent use.
// Failure to construct it is fatal at startup, not a runtime error.
type Vault struct {
	aead      cipher.AEAD
	digestKey []byte
}

// New derives the AES-256-GCM encryption key and the lookup-digest key from
// the master key with HKDF so the two uses never share key material.
func New(masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, errors.New("vault master key is required")
	}

	encKey, err := deriveKey(masterKey, "gatehouse/national-id-encryption")
	if err != nil {
		return nil, err
	}
	digestKey, err := deriveKey(masterKey, "gatehouse/national-id-digest")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &Vault{aead: aead, digestKey: digestKey}, nil
}

func deriveKey(masterKey, info string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key %q: %w", info, err)
	}
	return key, nil
}

// Encrypt returns the base64 form of nonce||ciphertext for a plaintext that
// must remain recoverable by the system.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", &domain.CryptoError{Op: "encrypt", Err: errors.New("empty plaintext")}
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &domain.CryptoError{Op: "encrypt", Err: err}
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed or tampered ciphertext is a
// CryptoError; there is no path that returns plaintext on failure.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &domain.CryptoError{Op: "decrypt", Err: err}
	}
	if len(raw) < v.aead.NonceSize() {
		return "", &domain.CryptoError{Op: "decrypt", Err: errors.New("ciphertext too short")}
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &domain.CryptoError{Op: "decrypt", Err: err}
	}
	return string(plain), nil
}

// LookupDigest returns a deterministic keyed digest of a national ID so
// exact lookup works without decrypting the roster. Not reversible.
func (v *Vault) LookupDigest(value string) string {
	mac := hmac.New(sha256.New, v.digestKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashSecret hashes a password or secret code with bcrypt. Loss of a secret
// requires an explicit reset; no decrypt path exists.
func (v *Vault) HashSecret(value string) (string, error) {
	if value == "" {
		return "", &domain.CryptoError{Op: "hash", Err: errors.New("empty secret")}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return "", &domain.CryptoError{Op: "hash", Err: err}
	}
	return string(hash), nil
}

// VerifySecret reports whether value matches the stored digest. An empty
// digest or value never verifies.
func (v *Vault) VerifySecret(digest, value string) bool {
	if digest == "" || value == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(value)) == nil
}
