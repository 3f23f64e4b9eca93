package storage

import (
	"context"
	"database/sql"
	"time"

	"cremeria-raiz/internal/models"
)

const userColumns = `id, username, password_hash, created_at, last_login`

func (db *DB) fetchUser(ctx context.Context, where string, params Params) (*models.User, error) {
	var (
		u         models.User
		lastLogin sql.NullTime
	)
	err := db.FetchOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`,
		params,
		&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// CreateUser creates a new user with the given username and password hash.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	res, err := db.Execute(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (:username, :password_hash, :created_at)`,
		Params{
			"username":      username,
			"password_hash": passwordHash,
			"created_at":    time.Now().UTC(),
		},
	)
	if err != nil {
		return nil, err
	}
	return db.GetUserByID(ctx, res.LastInsertID)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.fetchUser(ctx, `id = :id`, Params{"id": id})
}

// GetUserByUsername retrieves a user by exact username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.fetchUser(ctx, `username = :username`, Params{"username": username})
}

// TouchLastLogin records a successful login.
func (db *DB) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := db.Execute(ctx,
		`UPDATE users SET last_login = :last_login WHERE id = :id`,
		Params{"id": id, "last_login": at.UTC()},
	)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.FetchOne(ctx, `SELECT COUNT(*) FROM users`, nil, &count)
	return count, err
}
