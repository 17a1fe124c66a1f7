package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lanshare/internal/logging"
	"lanshare/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")

		// Embedded assets only change with the binary; listings never cache.
		if strings.HasPrefix(r.URL.Path, "/_assets/") {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		} else {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLog tags each request with an id (reusing a sane client supplied
// X-Request-ID) and logs one line when it completes.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := metrics.NewRecorder(w)
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.Status()),
			zap.Int64("bytes", rec.Bytes()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		}
		if rec.Status() >= http.StatusInternalServerError {
			logging.Warn("request", fields...)
			return
		}
		logging.Info("request", fields...)
	})
}
