package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"citizenportal/internal/config"
	"citizenportal/internal/db"
	"citizenportal/internal/engine"
	"citizenportal/internal/engine/auth"
	"citizenportal/internal/events"
	"citizenportal/internal/migrate"
	"citizenportal/internal/repo"
	"citizenportal/internal/staff"
	"citizenportal/internal/store"
)

// JWTSecretEnv names the environment variable holding the session signing secret.
const JWTSecretEnv = "PORTAL_JWT_SECRET"

// Runtime is everything a command needs, opened once per process.
type Runtime struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
	Engine    engine.Engine
	Staff     staff.Service
	Auth      auth.Service
	Logger    logrus.FieldLogger
}

type Options struct {
	Workspace string
	Logger    logrus.FieldLogger
	// JWTSecret overrides PORTAL_JWT_SECRET.
	JWTSecret string
}

// Open migrates the workspace database, loads portal.yml (defaults when absent)
// and wires the configured request adapter.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		logger.WithField("migration", name).Info("applied migration")
	}

	var adapter store.Adapter
	switch cfg.Storage.Driver {
	case config.DriverFile:
		fs, err := store.NewFileStore(db.Dir(opts.Workspace), logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		adapter = fs
	default:
		adapter = repo.Repo{DB: conn, Logger: logger}
	}

	secret := opts.JWTSecret
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv(JWTSecretEnv))
	}
	r := repo.Repo{DB: conn, Logger: logger}
	return &Runtime{
		Workspace: opts.Workspace,
		DB:        conn,
		Config:    cfg,
		Engine:    engine.New(conn, cfg, adapter, logger),
		Staff: staff.Service{
			Repo:   r,
			Events: events.Writer{DB: conn},
			Secret: secret,
			TTL:    cfg.Auth.SessionTTL,
			Issuer: cfg.Auth.Issuer,
		},
		Auth:   auth.Service{Repo: r},
		Logger: logger,
	}, nil
}

// Close releases the request adapter and the database.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if rt.Engine.Store != nil {
		firstErr = rt.Engine.Store.Close()
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
