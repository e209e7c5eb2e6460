package handler

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smsgate/internal/middleware"
	"github.com/smsgate/internal/storage"
)

// Route is one entry of the route table.
type Route struct {
	Name    string
	Pattern string
	Methods []string
	Handler http.Handler
}

// Routes returns the route table of the three steps.
func Routes(login, verify, upload http.Handler) []Route {
	methods := []string{http.MethodGet, http.MethodPost}
	return []Route{
		{Name: "login", Pattern: pathLogin, Methods: methods, Handler: login},
		{Name: "verify", Pattern: pathVerify, Methods: methods, Handler: verify},
		{Name: "upload", Pattern: pathUpload, Methods: methods, Handler: upload},
	}
}

// RouterConfig holds the pipeline settings of NewRouter.
type RouterConfig struct {
	Store              storage.SessionOTPStore
	Session            middleware.SessionOptions
	RateLimitPerMinute int
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	// CORSAllowedOrigins is a comma separated list; empty disables CORS handling.
	CORSAllowedOrigins string
}

// NewRouter registers routes behind the session and flash middleware.
// /health and / are served without a session. HEAD is answered by the GET handlers.
func NewRouter(routes []Route, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.TrustedRealIP(cfg.TrustedProxies))
	r.Use(chimw.GetHead)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverHTML)
	r.Use(middleware.RequestLog)
	if origins := splitOrigins(cfg.CORSAllowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, pathLogin, http.StatusFound) })

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitSubmissions(cfg.RateLimitPerMinute))
		r.Use(middleware.Sessions(cfg.Store, cfg.Session))
		r.Use(middleware.Flash)
		for _, rt := range routes {
			for _, m := range rt.Methods {
				r.Method(m, rt.Pattern, rt.Handler)
			}
		}
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
