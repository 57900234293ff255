package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/troublesprouter/freight-crm/internal/logs"
)

// RequestLogger writes one structured line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := logrus.Fields{
			"reqid":  chimw.GetReqID(r.Context()),
			"method": r.Method,
			"uri":    r.RequestURI,
			"status": ww.Status(),
			"bytes":  ww.BytesWritten(),
			"dur":    time.Since(start).String(),
			"ip":     r.RemoteAddr,
		}
		if rep := r.Header.Get(HeaderRepID); rep != "" {
			fields["rep"] = rep
		}
		logs.Logger.WithFields(fields).Info("request")
	})
}

// Recoverer turns a handler panic into a logged 500 problem response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqid := chimw.GetReqID(r.Context())
				logs.Logger.WithFields(logrus.Fields{
					"reqid":  reqid,
					"uri":    r.RequestURI,
					"method": r.Method,
				}).Errorf("panic: %v\n%s", rec, debug.Stack())
				WriteProblem(w, http.StatusInternalServerError, "Internal Server Error",
					"unexpected server error (see logs by reqid)", map[string]any{"reqid": reqid})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
