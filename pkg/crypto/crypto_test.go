package crypto

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"access token", "eyJhbGciOiJIUzI1NiJ9.broker-token"},
		{"unicode", "токен доступа"},
		{"long value", strings.Repeat("x", 2048)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if encrypted == tt.plaintext && tt.plaintext != "" {
				t.Error("ciphertext must differ from plaintext")
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if decrypted != tt.plaintext {
				t.Errorf("round trip mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptNonceUnique(t *testing.T) {
	key, _ := GenerateKey()
	a, err := Encrypt("same input", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt("same input", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same input must differ (random nonce)")
	}
}

func TestEncryptRejectsBadKey(t *testing.T) {
	if _, err := Encrypt("data", []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("err = %v, want %v", err, ErrInvalidKeyLength)
	}
	if _, err := Decrypt("data", []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("err = %v, want %v", err, ErrInvalidKeyLength)
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key, _ := GenerateKey()
	otherKey, _ := GenerateKey()

	encrypted, err := Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(encrypted, otherKey); err != ErrDecryptionFailed {
		t.Errorf("wrong key: err = %v, want %v", err, ErrDecryptionFailed)
	}
	if _, err := Decrypt("not-base64!!!", key); err != ErrInvalidCiphertext {
		t.Errorf("bad base64: err = %v, want %v", err, ErrInvalidCiphertext)
	}
}

func TestHashSecretVerify(t *testing.T) {
	hash, err := HashSecret("operator-token")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if err := VerifySecret("operator-token", hash); err != nil {
		t.Errorf("verify correct secret: %v", err)
	}
	if err := VerifySecret("wrong", hash); err != ErrSecretMismatch {
		t.Errorf("verify wrong secret: err = %v, want %v", err, ErrSecretMismatch)
	}
}

func TestHashSecretValidation(t *testing.T) {
	if _, err := HashSecret(""); err != ErrEmptySecret {
		t.Errorf("empty secret: err = %v, want %v", err, ErrEmptySecret)
	}
	long := strings.Repeat("a", MaxSecretLength+1)
	if _, err := HashSecret(long); err != ErrSecretTooLong {
		t.Errorf("long secret: err = %v, want %v", err, ErrSecretTooLong)
	}
	if SecretMatches("x", "garbage-hash") {
		t.Error("garbage hash must not match")
	}
}

func TestHashSecretUsesDefaultCost(t *testing.T) {
	hash, err := HashSecret("token")
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != DefaultCost {
		t.Errorf("cost = %d, want %d", cost, DefaultCost)
	}
}
