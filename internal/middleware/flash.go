package middleware

import (
	"net/http"

	"github.com/smsgate/internal/flash"
	"github.com/smsgate/internal/session"
)

// Flash attaches the flash messages of the current session. Must run after Sessions.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		m := flash.Load(sess)
		next.ServeHTTP(w, r.WithContext(flash.NewContext(r.Context(), m)))
	})
}
