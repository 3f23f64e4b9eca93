package storage

import (
	"context"
	"database/sql"
	"time"

	"cremeria-raiz/internal/models"
)

// SessionRecord is the persisted form of a browser session.
// A zero UserID means the session is anonymous.
type SessionRecord struct {
	Token        string
	UserID       int64
	Username     string
	LoginAt      *time.Time
	Flash        *models.Flash
	LastActivity time.Time
	ExpiresAt    time.Time
}

// SaveSession inserts or replaces the session row for rec.Token.
func (db *DB) SaveSession(ctx context.Context, rec SessionRecord) error {
	var (
		userID  any
		loginAt any
	)
	if rec.UserID > 0 {
		userID = rec.UserID
	}
	if rec.LoginAt != nil {
		loginAt = rec.LoginAt.UTC()
	}
	var flashKind, flashText string
	if rec.Flash != nil {
		flashKind, flashText = string(rec.Flash.Kind), rec.Flash.Text
	}

	_, err := db.Execute(ctx, `
		INSERT INTO sessions (token, user_id, username, login_at, flash_kind, flash_text, last_activity, expires_at)
		VALUES (:token, :user_id, :username, :login_at, :flash_kind, :flash_text, :last_activity, :expires_at)
		ON CONFLICT(token) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			login_at = excluded.login_at,
			flash_kind = excluded.flash_kind,
			flash_text = excluded.flash_text,
			last_activity = excluded.last_activity,
			expires_at = excluded.expires_at`,
		Params{
			"token":         rec.Token,
			"user_id":       userID,
			"username":      rec.Username,
			"login_at":      loginAt,
			"flash_kind":    flashKind,
			"flash_text":    flashText,
			"last_activity": rec.LastActivity.UTC(),
			"expires_at":    rec.ExpiresAt.UTC(),
		},
	)
	return err
}

// GetSession returns the session for token if it has not expired at now.
func (db *DB) GetSession(ctx context.Context, token string, now time.Time) (*SessionRecord, error) {
	var (
		rec       SessionRecord
		userID    sql.NullInt64
		loginAt   sql.NullTime
		flashKind string
		flashText string
	)
	err := db.FetchOne(ctx, `
		SELECT token, user_id, username, login_at, flash_kind, flash_text, last_activity, expires_at
		FROM sessions
		WHERE token = :token AND expires_at > :now`,
		Params{"token": token, "now": now.UTC()},
		&rec.Token, &userID, &rec.Username, &loginAt, &flashKind, &flashText, &rec.LastActivity, &rec.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	rec.UserID = userID.Int64
	if loginAt.Valid {
		t := loginAt.Time
		rec.LoginAt = &t
	}
	if flashText != "" {
		rec.Flash = &models.Flash{Kind: models.FlashKind(flashKind), Text: flashText}
	}
	return &rec, nil
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.Execute(ctx, `DELETE FROM sessions WHERE token = :token`, Params{"token": token})
	return err
}

// CleanExpiredSessions removes all sessions expired at now.
func (db *DB) CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.Execute(ctx,
		`DELETE FROM sessions WHERE expires_at <= :now`,
		Params{"now": now.UTC()},
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
