package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptySecret    = errors.New("secret cannot be empty")
	ErrSecretMismatch = errors.New("secret does not match hash")
	ErrInvalidHash    = errors.New("invalid hash format")
	ErrSecretTooLong  = errors.New("secret exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость bcrypt по умолчанию
const DefaultCost = 12

// MaxSecretLength - ограничение bcrypt на длину входа (72 байта)
const MaxSecretLength = 72

// HashSecret хеширует операторский API-токен через bcrypt.
// В БД и конфиге хранится только хеш, не сам токен.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > MaxSecretLength {
		return "", ErrSecretTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret проверяет соответствие токена хешу.
// Сравнение constant-time, защита от timing attacks.
func VerifySecret(secret, hash string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if hash == "" {
		return ErrInvalidHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrSecretMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// SecretMatches - удобная булева обёртка над VerifySecret
func SecretMatches(secret, hash string) bool {
	return VerifySecret(secret, hash) == nil
}
