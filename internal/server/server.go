// Package server assembles the admin panel from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cremeria-raiz/internal/auth"
	"cremeria-raiz/internal/catalog"
	"cremeria-raiz/internal/config"
	"cremeria-raiz/internal/handlers"
	"cremeria-raiz/internal/session"
	"cremeria-raiz/internal/storage"
	"cremeria-raiz/web"

	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 15 * time.Minute
)

// Server wraps the HTTP server and its database.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	db         *storage.DB
	log        *zap.Logger
	sweepEvery time.Duration
}

// New opens the database, applies migrations, seeds the first admin when
// configured and builds the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := storage.NewDB(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sweepSessions(ctx, db, logger)

	if err := SeedAdmin(ctx, db, cfg.AdminUser, cfg.AdminPassword, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	templates, err := web.ParseTemplates(cfg.Location)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.CSRFKeyGenerated {
		logger.Warn("CSRF_KEY not set, using a random key; open forms will fail after a restart")
	}

	sessions := session.NewManager(db, session.Options{
		TTL:    cfg.SessionTTL,
		Secure: cfg.SecureCookie,
		Logger: logger,
	})
	h := handlers.NewHandlers(handlers.Deps{
		Sessions:  sessions,
		Auth:      auth.NewAuthenticator(db, sessions, logger),
		Catalog:   catalog.NewService(db, logger),
		Sweeper:   db,
		DB:        db,
		Templates: templates,
		Logger:    logger,
	})
	router := handlers.NewRouter(h, handlers.RouterOptions{
		CSRFKey: cfg.CSRFKey,
		Secure:  cfg.SecureCookie,
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler:    router,
		db:         db,
		log:        logger,
		sweepEvery: sweepInterval,
	}, nil
}

func sweepSessions(ctx context.Context, db *storage.DB, logger *zap.Logger) {
	n, err := db.CleanExpiredSessions(ctx, time.Now())
	if err != nil {
		logger.Warn("failed to clean expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("expired sessions removed", zap.Int64("count", n))
	}
}

// sweepLoop purges expired session rows until ctx is done. Anonymous visitors
// leave rows behind that no login would ever sweep.
func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepSessions(ctx, s.db, s.log)
		}
	}
}

// SeedAdmin creates the first account when username and password are set and
// no user exists yet.
func SeedAdmin(ctx context.Context, db *storage.DB, username, password string, logger *zap.Logger) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := db.CreateUser(ctx, username, hash)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	logger.Info("admin user created", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return nil
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.db.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.sweepLoop(sweepCtx)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the database without serving.
func (s *Server) Close() error {
	return s.db.Close()
}
