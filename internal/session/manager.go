package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"cremeria-raiz/internal/storage"

	"go.uber.org/zap"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "cremeria_session"
	// DefaultTTL is how long an idle session lasts.
	DefaultTTL = 24 * time.Hour
)

// Store persists session records.
type Store interface {
	SaveSession(ctx context.Context, rec storage.SessionRecord) error
	GetSession(ctx context.Context, token string, now time.Time) (*storage.SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
}

// Options configures a Manager.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Logger     *zap.Logger
	Now        func() time.Time
}

// Manager loads, saves and destroys sessions and their cookies.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	log        *zap.Logger
	now        func() time.Time
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts Options) *Manager {
	m := &Manager{
		store:      store,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// NewToken generates a random URL-safe session token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Load returns the session named by the request cookie. A missing, unknown
// or expired token yields a fresh anonymous session.
func (m *Manager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return New()
	}

	rec, err := m.store.GetSession(r.Context(), cookie.Value, m.now())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("session lookup failed, continuing anonymous", zap.Error(err))
		}
		return New()
	}

	s := &Session{
		Token:     rec.Token,
		UserID:    rec.UserID,
		Username:  rec.Username,
		ExpiresAt: rec.ExpiresAt,
		flash:     rec.Flash,
		stored:    true,
	}
	if rec.LoginAt != nil {
		s.LoginAt = *rec.LoginAt
	}
	return s
}

// Save persists s, extends its lifetime and (re)sends the cookie.
// It must be called before anything is written to the response body.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.Token == "" {
		token, err := NewToken()
		if err != nil {
			return err
		}
		s.Token = token
	}

	now := m.now()
	s.ExpiresAt = now.Add(m.ttl)

	rec := storage.SessionRecord{
		Token:        s.Token,
		UserID:       s.UserID,
		Username:     s.Username,
		Flash:        s.flash,
		LastActivity: now,
		ExpiresAt:    s.ExpiresAt,
	}
	if !s.LoginAt.IsZero() {
		loginAt := s.LoginAt
		rec.LoginAt = &loginAt
	}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return err
	}
	s.stored = true

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Rotate discards the stored row so the next Save issues a new token.
// Session contents are kept.
func (m *Manager) Rotate(ctx context.Context, s *Session) error {
	if s.stored && s.Token != "" {
		if err := m.store.DeleteSession(ctx, s.Token); err != nil {
			return err
		}
	}
	s.Token = ""
	s.stored = false
	return nil
}

// Destroy deletes the stored session, clears s and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	var err error
	if s.stored && s.Token != "" {
		err = m.store.DeleteSession(ctx, s.Token)
	}
	s.Clear()
	s.Token = ""
	s.stored = false

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

// Middleware loads the session into the request context.
// It also implements rolling sessions: a stored session past the halfway
// point of its lifetime is renewed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.Load(r)
		if s.stored && s.ExpiresAt.Sub(m.now()) < m.ttl/2 {
			if err := m.Save(r.Context(), w, s); err != nil {
				// continue with the current expiry
				m.log.Warn("session renewal failed", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}
