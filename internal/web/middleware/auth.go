package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/logging"
	"github.com/JonMunkholm/catalog-import/internal/metrics"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth guards the import API. The key is read from X-API-Key or, for
// clients that only send bearer tokens, from "Authorization: Bearer <key>". With RequireAPIKey off every request
// passes; with it on and no keys configured every request is refused.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		keys[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedKey(r)

			var reason, message string
			status := http.StatusUnauthorized
			switch {
			case presented == "":
				reason, message = "missing", "missing API key"
			case !matchesAny([]byte(presented), keys):
				reason, message = "invalid", "invalid API key"
				status = http.StatusForbidden
			default:
				next.ServeHTTP(w, r)
				return
			}

			metrics.AuthRejected.WithLabelValues(reason).Inc()
			logging.FromContext(r.Context()).Warn("api request refused",
				"reason", reason,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeJSONError(w, status, message, "AUTH_"+strings.ToUpper(reason)+"_KEY")
		})
	}
}

func presentedKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(apiKeyHeader)); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// matchesAny compares against every key in constant time.
func matchesAny(presented []byte, keys [][]byte) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare(presented, k)
	}
	return match == 1
}

// writeJSONError writes the same body shape the API handlers use.
func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
		"code":    code,
	})
}
