package middleware

import (
	"net/http"

	"github.com/smsgate/internal/logger"
)

// responseWriter records whether the header was already written.
type responseWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

const internalErrorPage = `<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Internal server error</h1></body></html>`

// RecoverHTML logs a handler panic and answers 500 with a plain HTML page if nothing was written yet.
func RecoverHTML(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Errorf("panic recovered %s %s: %v", r.Method, r.URL.Path, err)
				if !wrap.wrote {
					wrap.ResponseWriter.Header().Set("Content-Type", "text/html; charset=utf-8")
					wrap.ResponseWriter.WriteHeader(http.StatusInternalServerError)
					_, _ = wrap.ResponseWriter.Write([]byte(internalErrorPage))
				}
			}
		}()
		next.ServeHTTP(wrap, r)
	})
}
