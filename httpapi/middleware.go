package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handle registers h under pattern, counting requests per route and status and
// timing them.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	duration := s.metrics.GetOrCreateHistogram(fmt.Sprintf(`constdb_http_request_duration_seconds{route=%q}`, pattern))
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		h(rw, r)

		elapsed := time.Since(start)
		duration.Update(elapsed.Seconds())
		s.metrics.GetOrCreateCounter(fmt.Sprintf(`constdb_http_requests_total{route=%q,code="%s"}`, pattern, strconv.Itoa(rw.statusCode))).Inc()
		s.logger.Debug("http", "method", r.Method, "path", r.URL.Path, "status", rw.statusCode, "took", elapsed)
	})
}
