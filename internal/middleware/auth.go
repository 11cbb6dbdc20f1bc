package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenFromRequest returns the bearer token of r. Browsers cannot set
// headers on a websocket handshake, so the access_token query parameter is
// accepted as well.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// RequireToken rejects requests whose bearer token does not match the bcrypt
// hash. An empty hash disables the check. Clients that keep failing are
// answered with 429 until their window resets.
func RequireToken(hash string, limiter *FailureLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := RealIP(r)
			if limiter != nil && limiter.Blocked(ip) {
				writeError(w, http.StatusTooManyRequests, "too many failed attempts")
				return
			}

			token := TokenFromRequest(r)
			if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
				if limiter != nil {
					limiter.Fail(ip)
				}
				logger.Warn("rejected request", "path", r.URL.Path, "remote", ip)
				w.Header().Set("WWW-Authenticate", `Bearer realm="desklist"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
