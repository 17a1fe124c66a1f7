// Package metrics provides Prometheus metrics for the lanshare server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lanshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	listingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_listings_total",
			Help: "Directory listings rendered",
		},
		[]string{"status"},
	)

	listingEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lanshare_listing_entries",
			Help:    "Entries per rendered listing",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	hashedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_hashed_bytes_total",
			Help: "Bytes hashed while rendering listings",
		},
		[]string{"algorithm"},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_bytes_downloaded_total",
			Help: "Total bytes served by download",
		},
	)

	bytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanshare_bytes_uploaded_total",
			Help: "Total bytes written by upload",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanshare_uploads_total",
			Help: "Uploaded files",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordListing records a rendered listing and the bytes hashed for it.
func RecordListing(entries int, algorithm string, hashed int64, ok bool) {
	listingsTotal.WithLabelValues(status(ok)).Inc()
	if !ok {
		return
	}
	listingEntries.Observe(float64(entries))
	hashedBytes.WithLabelValues(algorithm).Add(float64(hashed))
}

func RecordDownload(n int64) {
	bytesDownloaded.Add(float64(n))
}

func RecordUpload(n int64, ok bool) {
	uploadsTotal.WithLabelValues(status(ok)).Inc()
	if ok {
		bytesUploaded.Add(float64(n))
	}
}

// Recorder wraps http.ResponseWriter to capture the status code and body
// size. Stacked middleware share one Recorder through NewRecorder.
type Recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// NewRecorder wraps w, or returns w itself when it already is a Recorder.
func NewRecorder(w http.ResponseWriter) *Recorder {
	if rec, ok := w.(*Recorder); ok {
		return rec
	}
	return &Recorder{ResponseWriter: w}
}

func (rw *Recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *Recorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *Recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *Recorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Status is the first status written, 200 when the handler wrote nothing.
func (rw *Recorder) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Bytes is the body size written so far.
func (rw *Recorder) Bytes() int64 { return rw.bytes }

// Middleware records request metrics. route maps a request to a bounded label
// so arbitrary static paths do not explode cardinality.
func Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewRecorder(w)
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, route(r), rw.Status(), time.Since(start))
	})
}
