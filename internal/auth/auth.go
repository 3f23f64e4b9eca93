// Package auth implements login, logout and the authenticated-session check
// for the admin panel.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cremeria-raiz/internal/models"
	"cremeria-raiz/internal/session"
	"cremeria-raiz/internal/storage"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
// Callers must not tell the two apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore looks up accounts and records logins.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// SessionStore is the part of session.Manager the Authenticator needs.
type SessionStore interface {
	Rotate(ctx context.Context, s *session.Session) error
	Destroy(ctx context.Context, w http.ResponseWriter, s *session.Session) error
}

// Authenticator moves a session between anonymous and authenticated.
type Authenticator struct {
	users    UserStore
	sessions SessionStore
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserStore, sessions SessionStore, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		users:    users,
		sessions: sessions,
		log:      logger.Named("auth"),
		now:      time.Now,
	}
}

// IsAuthenticated reports whether s carries a user identity.
func IsAuthenticated(s *session.Session) bool {
	return s != nil && s.UserID > 0
}

// Login checks the credentials and, on success, signs s in under a new token.
// The caller still has to save s.
func (a *Authenticator) Login(ctx context.Context, s *session.Session, username, password string) error {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			CheckPassword(password, dummyHash())
			return ErrInvalidCredentials
		}
		return err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := a.sessions.Rotate(ctx, s); err != nil {
		return err
	}
	now := a.now()
	s.SignIn(user.ID, user.Username, now)

	// best effort: a failed timestamp write does not undo the login
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		a.log.Warn("failed to record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	a.log.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

// Logout tears down s and returns a fresh anonymous session that can carry a
// flash message to the next page. The returned session is valid even when
// the error is not nil.
func (a *Authenticator) Logout(ctx context.Context, w http.ResponseWriter, s *session.Session) (*session.Session, error) {
	userID := s.UserID
	err := a.sessions.Destroy(ctx, w, s)
	if err != nil {
		a.log.Error("failed to delete session", zap.Int64("user_id", userID), zap.Error(err))
	} else if userID > 0 {
		a.log.Info("user logged out", zap.Int64("user_id", userID))
	}
	return session.New(), err
}
