package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"statarb/pkg/crypto"
)

// Auth - middleware проверки операторского токена.
//
// Токен передаётся как Authorization: Bearer <token> и сверяется
// с bcrypt-хэшем из конфигурации (API_TOKEN_HASH). Пустой хэш
// отключает проверку: локальное развертывание без auth.
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.SecretMatches(token, tokenHash) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) {
		return ""
	}
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(h[:len(prefix)])), []byte(strings.ToLower(prefix))) != 1 {
		return ""
	}
	return h[len(prefix):]
}
