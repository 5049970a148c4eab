package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/JonMunkholm/sheetload/internal/logging"
)

// APIKeyAuth rejects requests whose X-API-Key header matches none of keys.
// With no keys configured every request passes.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" || !validKey(key, keys) {
				logging.FromContext(r.Context()).Warn("rejected API key",
					"path", r.URL.Path,
					"missing", key == "",
					"ip", r.RemoteAddr,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid or missing API key","message":"invalid or missing API key","code":"AUTH001"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validKey compares against every key in constant time.
func validKey(key string, keys []string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return ok == 1
}
