package request

import (
	"net/http"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over
// the cap is refused with 413 before the handler runs; undeclared bodies are
// wrapped in http.MaxBytesReader so the decoder fails on overflow.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"error":"payload_too_large"}`)) //nolint:errcheck // headers already sent
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
