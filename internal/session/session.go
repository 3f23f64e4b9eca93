// Package session keeps per-browser state (identity and a one-shot flash
// message) in the sessions table, addressed by an opaque cookie token.
package session

import (
	"context"
	"time"

	"cremeria-raiz/internal/models"
)

// Session is the state of one browser session for the duration of a request.
// It is not safe for concurrent use; each request owns its copy.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	LoginAt   time.Time
	ExpiresAt time.Time

	flash  *models.Flash
	stored bool
}

// New returns an anonymous session with no token. A token is assigned on the first save.
func New() *Session {
	return &Session{}
}

// SignIn attaches an identity to the session.
func (s *Session) SignIn(userID int64, username string, at time.Time) {
	s.UserID = userID
	s.Username = username
	s.LoginAt = at
}

// Clear drops identity and any pending flash.
func (s *Session) Clear() {
	s.UserID = 0
	s.Username = ""
	s.LoginAt = time.Time{}
	s.flash = nil
}

// SetFlash stores a message for the next rendered page, replacing any unread one.
func (s *Session) SetFlash(text string, kind models.FlashKind) {
	s.flash = &models.Flash{Kind: kind, Text: text}
}

// TakeFlash returns the pending message, if any, and removes it.
func (s *Session) TakeFlash() *models.Flash {
	f := s.flash
	s.flash = nil
	return f
}

// HasFlash reports whether a message is pending.
func (s *Session) HasFlash() bool {
	return s.flash != nil
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx, or a fresh anonymous one.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok && s != nil {
		return s
	}
	return New()
}
