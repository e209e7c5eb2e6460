package middleware

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/session"
	"github.com/smsgate/internal/storage"
)

// maxSessionLifetime caps a session that is kept alive by activity.
const maxSessionLifetime = 24 * time.Hour

// SessionOptions configures the session cookie and the idle timeout.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// NewSessionManager builds the scs manager that keeps sessions in store.
// Every request that carries a session slides its expiry by opts.TTL.
func NewSessionManager(store storage.SessionOTPStore, opts SessionOptions) *scs.SessionManager {
	sm := scs.New()
	sm.Store = storage.NewSessionStore(store)
	sm.IdleTimeout = opts.TTL
	sm.Lifetime = max(maxSessionLifetime, opts.TTL)
	sm.Cookie.Name = opts.CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = opts.Secure
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		id := ""
		if c, cerr := r.Cookie(opts.CookieName); cerr == nil {
			id = c.Value
		}
		logger.Errorf("session store %s %s session_id=%s: %v", r.Method, r.URL.Path, MaskSessionID(id), err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	}
	return sm
}

// Sessions loads the visitor session named by the cookie, attaches it to the request context
// and commits it after the handler returns. Unknown or expired tokens start a fresh session;
// a session that was never written gets no cookie.
func Sessions(store storage.SessionOTPStore, opts SessionOptions) func(http.Handler) http.Handler {
	sm := NewSessionManager(store, opts)
	return func(next http.Handler) http.Handler {
		attach := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.New(r.Context(), sm)
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
		return sm.LoadAndSave(attach)
	}
}
