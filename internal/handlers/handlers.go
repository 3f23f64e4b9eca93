package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"cremeria-raiz/internal/auth"
	"cremeria-raiz/internal/catalog"
	"cremeria-raiz/internal/models"
	"cremeria-raiz/internal/session"
	"cremeria-raiz/web"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// User-facing messages.
const (
	MsgMissingFields  = "Por favor, completa todos los campos."
	MsgBadCredentials = "Usuario o contraseña incorrectos."
	MsgLoginFailed    = "Error interno del servidor. Por favor, inténtalo más tarde."
	MsgLoginRequired  = "Debes iniciar sesión para acceder al panel de administración."
	MsgNoSession      = "No había una sesión activa."
)

// WelcomeMessage is flashed after a successful login.
func WelcomeMessage(username string) string {
	return "Bienvenido, " + username + "!"
}

// GoodbyeMessage is flashed after logout.
func GoodbyeMessage(username string) string {
	if username == "" {
		username = "Usuario"
	}
	return "Sesión cerrada exitosamente. ¡Hasta pronto, " + username + "!"
}

// SessionSweeper removes expired session rows.
type SessionSweeper interface {
	CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Handlers.
type Deps struct {
	Sessions  *session.Manager
	Auth      *auth.Authenticator
	Catalog   *catalog.Service
	Sweeper   SessionSweeper
	DB        Pinger
	Templates *web.Templates
	Logger    *zap.Logger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	sessions  *session.Manager
	auth      *auth.Authenticator
	catalog   *catalog.Service
	sweeper   SessionSweeper
	db        Pinger
	templates *web.Templates
	log       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		catalog:   deps.Catalog,
		sweeper:   deps.Sweeper,
		db:        deps.DB,
		templates: deps.Templates,
		log:       logger.Named("http"),
	}
}

// Page is the part of every view model the base layout reads.
type Page struct {
	Title     string
	Username  string
	CSRFField template.HTML
	Error     string
	Success   string
	Info      string
}

// flash puts a session message in the slot for its kind, replacing what is there.
func (p *Page) flash(f *models.Flash) {
	if f == nil {
		return
	}
	switch f.Kind {
	case models.FlashSuccess:
		p.Success = f.Text
	case models.FlashInfo:
		p.Info = f.Text
	default:
		p.Error = f.Text
	}
}

func newPage(r *http.Request, title string, s *session.Session) Page {
	p := Page{Title: title, CSRFField: csrf.TemplateField(r)}
	if auth.IsAuthenticated(s) {
		p.Username = s.Username
	}
	return p
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Page
	FormUsername string
}

// DashboardViewModel holds data for the dashboard page.
type DashboardViewModel struct {
	Page
	Products []models.Product
	Stats    models.Stats
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if auth.IsAuthenticated(s) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	vm := LoginViewModel{Page: newPage(r, "Iniciar sesión", s)}
	vm.flash(h.takeFlash(w, r, s))
	h.render(w, r, web.PageLogin, vm)
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if auth.IsAuthenticated(s) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	vm := LoginViewModel{Page: newPage(r, "Iniciar sesión", s)}
	if err := r.ParseForm(); err != nil {
		h.log.Warn("invalid login form", zap.Error(err))
		vm.Error = MsgMissingFields
		h.renderLogin(w, r, s, vm)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	vm.FormUsername = username

	if username == "" || password == "" {
		vm.Error = MsgMissingFields
		h.renderLogin(w, r, s, vm)
		return
	}

	if err := h.auth.Login(r.Context(), s, username, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Info("failed login attempt", zap.String("username", username))
			vm.Error = MsgBadCredentials
		} else {
			h.log.Error("login failed", zap.Error(err))
			vm.Error = MsgLoginFailed
		}
		h.renderLogin(w, r, s, vm)
		return
	}

	s.SetFlash(WelcomeMessage(s.Username), models.FlashSuccess)
	if err := h.sessions.Save(r.Context(), w, s); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
		s.Clear()
		vm.Error = MsgLoginFailed
		h.render(w, r, web.PageLogin, vm)
		return
	}
	h.sweepSessions(r.Context())

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// renderLogin shows the form again, along with any pending flash.
func (h *Handlers) renderLogin(w http.ResponseWriter, r *http.Request, s *session.Session, vm LoginViewModel) {
	vm.flash(h.takeFlash(w, r, s))
	h.render(w, r, web.PageLogin, vm)
}

// Logout ends the session and says goodbye on the login page.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	if !auth.IsAuthenticated(s) {
		s.SetFlash(MsgNoSession, models.FlashInfo)
		h.saveSession(w, r, s)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	username := s.Username
	fresh, err := h.auth.Logout(r.Context(), w, s)
	if err != nil {
		// the cookie is already expired; the stale row expires on its own
		h.log.Warn("logout could not delete the session", zap.Error(err))
	}
	fresh.SetFlash(GoodbyeMessage(username), models.FlashSuccess)
	h.saveSession(w, r, fresh)

	http.Redirect(w, r, "/login", http.StatusFound)
}

// RequireAuth wraps handlers to require an authenticated session.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		if !auth.IsAuthenticated(s) {
			s.SetFlash(MsgLoginRequired, models.FlashError)
			h.saveSession(w, r, s)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Dashboard renders the product list and stats.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	h.renderDashboard(w, r, s, newPage(r, "Panel de Administración", s))
}

// DashboardAction applies one product action and renders the dashboard in
// the same response.
func (h *Handlers) DashboardAction(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	page := newPage(r, "Panel de Administración", s)

	var action catalog.Action = catalog.Unrecognized{}
	if err := r.ParseForm(); err != nil {
		h.log.Warn("invalid dashboard form", zap.Error(err))
	} else {
		action = catalog.ParseAction(r.PostForm)
	}

	result := h.catalog.Apply(r.Context(), action)
	if result.IsError() {
		page.Error = result.Message
	} else if result.Outcome == catalog.OutcomeSuccess {
		page.Success = result.Message
	}

	h.renderDashboard(w, r, s, page)
}

func (h *Handlers) renderDashboard(w http.ResponseWriter, r *http.Request, s *session.Session, page Page) {
	ov := h.catalog.Overview(r.Context())
	if ov.Error != "" {
		page.Error = ov.Error
	}
	page.flash(h.takeFlash(w, r, s))

	h.render(w, r, web.PageDashboard, DashboardViewModel{
		Page:     page,
		Products: ov.Products,
		Stats:    ov.Stats,
	})
}

// Healthz reports whether the database answers.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

// takeFlash reads the pending message once and persists the cleared state
// before the page is written.
func (h *Handlers) takeFlash(w http.ResponseWriter, r *http.Request, s *session.Session) *models.Flash {
	f := s.TakeFlash()
	if f != nil {
		h.saveSession(w, r, s)
	}
	return f
}

func (h *Handlers) saveSession(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := h.sessions.Save(r.Context(), w, s); err != nil {
		h.log.Error("failed to save session", zap.Error(err))
	}
}

func (h *Handlers) sweepSessions(ctx context.Context) {
	if h.sweeper == nil {
		return
	}
	n, err := h.sweeper.CleanExpiredSessions(ctx, time.Now())
	if err != nil {
		h.log.Warn("failed to clean expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		h.log.Debug("expired sessions removed", zap.Int64("count", n))
	}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, page, data); err != nil {
		h.log.Error("template execution failed", zap.String("page", page), zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, catalog.MsgInternal, http.StatusInternalServerError)
	}
}
