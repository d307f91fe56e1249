package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RequestLogger returns chi middleware that logs one entry per request.
// Server errors log at error level and client errors at warn level.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithFields(logrus.Fields{
				StandardFields.Component:  "http",
				StandardFields.Method:     r.Method,
				StandardFields.Path:       r.URL.Path,
				StandardFields.Status:     status,
				StandardFields.Bytes:      ww.BytesWritten(),
				StandardFields.DurationMs: time.Since(start).Milliseconds(),
				StandardFields.RemoteAddr: r.RemoteAddr,
			})
			if id := middleware.GetReqID(r.Context()); id != "" {
				entry = entry.WithField(StandardFields.RequestID, id)
			}

			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("request failed")
			case status >= http.StatusBadRequest:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
		})
	}
}
