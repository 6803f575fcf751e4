package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger writes one access log entry per request, tagged with the id
// set by chi's RequestID middleware. Paths are anonymized by the logger, which
// hides the email in follow requests.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		l := logg
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			l = l.With("request_id", id)
		}
		msg := fmt.Sprintf("%s %s %d %dB in %s", r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start).Round(time.Microsecond))
		if status >= http.StatusInternalServerError {
			l.Error("http", msg, nil)
			return
		}
		l.Info("http", msg)
	})
}
