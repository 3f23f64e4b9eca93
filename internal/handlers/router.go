package handlers

import (
	"net/http"

	"cremeria-raiz/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// MsgForbidden is shown when a form fails the CSRF check.
const MsgForbidden = "La solicitud no es válida. Recarga la página e inténtalo de nuevo."

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// CSRFKey is the 32-byte key that authenticates CSRF tokens.
	CSRFKey []byte
	// Secure marks the site as served over HTTPS.
	Secure bool
}

// NewRouter wires the routes, middleware and static assets.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(h.log),
		middleware.Recoverer,
	)

	r.Get("/healthz", h.Healthz)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))

	r.Group(func(r chi.Router) {
		if !opts.Secure {
			r.Use(plaintextHTTP)
		}
		r.Use(csrf.Protect(opts.CSRFKey,
			csrf.Secure(opts.Secure),
			csrf.Path("/"),
			csrf.HttpOnly(true),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.CookieName("cremeria_csrf"),
			csrf.ErrorHandler(http.HandlerFunc(h.csrfFailure)),
		))
		r.Use(h.sessions.Middleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		})
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.Login)
		r.Get("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/dashboard", h.Dashboard)
			r.Post("/dashboard", h.DashboardAction)
		})
	})

	return r
}

// plaintextHTTP tells gorilla/csrf the site is served without TLS so its
// same-origin check compares against http:// origins.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func (h *Handlers) csrfFailure(w http.ResponseWriter, r *http.Request) {
	h.log.Warn("csrf check failed", zap.String("path", r.URL.Path), zap.Error(csrf.FailureReason(r)))
	http.Error(w, MsgForbidden, http.StatusForbidden)
}
