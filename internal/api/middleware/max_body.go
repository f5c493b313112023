package middleware

import (
	"net/http"

	"github.com/agentkb/agentkb/internal/api"
)

// MaxBodyBytes rejects requests whose body exceeds maxBytes. Requests with
// a known oversized Content-Length fail fast with 413; chunked bodies are
// capped by MaxBytesReader so handlers see a read error instead.
func MaxBodyBytes(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
