package vault

import (
	"errors"
	"strings"
	"testing"

	"github.com/yourorg/gatehouse/internal/domain"
)

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty master key")
	}
	if _, err := New("test-master-key"); err != nil {
		t.Fatalf("vault init failed: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("test-master-key")
	if err != nil {
		t.Fatalf("vault init failed: %v", err)
	}

	for _, plain := range []string{"N1", "GHA-123456789-0", strings.Repeat("x", 512)} {
		ct, err := v.Encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt %q failed: %v", plain, err)
		}
		if ct == plain {
			t.Fatalf("ciphertext equals plaintext")
		}
		got, err := v.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if got != plain {
			t.Fatalf("round trip mismatch: got %q want %q", got, plain)
		}
	}
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	v, _ := New("test-master-key")
	a, err := v.Encrypt("N1")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := v.Encrypt("N1")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ciphertexts for repeated encryption")
	}
}

func TestDecryptRejectsMalformed(t *testing.T) {
	v, _ := New("test-master-key")

	var cryptoErr *domain.CryptoError
	for _, ct := range []string{"", "not base64 !!!", "dG9vc2hvcnQ"} {
		_, err := v.Decrypt(ct)
		if err == nil {
			t.Fatalf("expected error decrypting %q", ct)
		}
		if !errors.As(err, &cryptoErr) {
			t.Fatalf("expected CryptoError, got %T", err)
		}
	}

	// Tampered ciphertext must not decrypt.
	ct, _ := v.Encrypt("N1")
	tampered := "A" + ct[1:]
	if tampered == ct {
		tampered = "B" + ct[1:]
	}
	if _, err := v.Decrypt(tampered); err == nil {
		t.Fatalf("expected error for tampered ciphertext")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	v1, _ := New("key-one")
	v2, _ := New("key-two")

	ct, err := v1.Encrypt("N1")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := v2.Decrypt(ct); err == nil {
		t.Fatalf("expected decrypt under wrong key to fail")
	}
}

func TestLookupDigestDeterministic(t *testing.T) {
	v, _ := New("test-master-key")
	if v.LookupDigest("N1") != v.LookupDigest("N1") {
		t.Fatalf("digest not deterministic")
	}
	if v.LookupDigest("N1") == v.LookupDigest("N2") {
		t.Fatalf("distinct values produced identical digests")
	}

	other, _ := New("another-key")
	if v.LookupDigest("N1") == other.LookupDigest("N1") {
		t.Fatalf("digest should depend on the master key")
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	v, _ := New("test-master-key")

	hash, err := v.HashSecret("4921")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "4921" {
		t.Fatalf("hash equals plaintext")
	}
	if !v.VerifySecret(hash, "4921") {
		t.Fatalf("correct secret did not verify")
	}
	if v.VerifySecret(hash, "4922") {
		t.Fatalf("wrong secret verified")
	}
	if v.VerifySecret("", "4921") {
		t.Fatalf("empty digest verified")
	}
	if v.VerifySecret(hash, "") {
		t.Fatalf("empty secret verified")
	}
}

func TestHashSecretRejectsEmpty(t *testing.T) {
	v, _ := New("test-master-key")
	var cryptoErr *domain.CryptoError
	if _, err := v.HashSecret(""); !errors.As(err, &cryptoErr) {
		t.Fatalf("expected CryptoError for empty secret, got %v", err)
	}
}
