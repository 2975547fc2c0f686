package middleware

import (
	"net/http"
	"os"
	"strconv"
)

// Body limits are applied per route: JSON endpoints get a small cap while
// the prescription upload accepts photos. Defaults come from env vars
// MAX_BODY_BYTES (1 MiB) and UPLOAD_MAX_BYTES (16 MiB).

func envBytes(key string, def int64) int64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func JSONBodyLimit() int64   { return envBytes("MAX_BODY_BYTES", 1<<20) }
func UploadBodyLimit() int64 { return envBytes("UPLOAD_MAX_BYTES", 16<<20) }

// MaxBody returns a middleware that caps the request body at n bytes.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
