package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/emilianohg/cyclelog/internal/auth"
	"github.com/emilianohg/cyclelog/internal/config"
	"github.com/emilianohg/cyclelog/internal/linear"
	"github.com/emilianohg/cyclelog/internal/logging"
	"github.com/emilianohg/cyclelog/internal/session"
	"github.com/emilianohg/cyclelog/internal/store"
	"github.com/emilianohg/cyclelog/internal/store/firestorestore"
	"github.com/emilianohg/cyclelog/internal/store/sqlitestore"
	"github.com/emilianohg/cyclelog/internal/timer"
)

var errSignedOut = errors.New("not signed in, run 'cyclelog login' first")

// app holds everything a command needs once config, logging and the store
// are up.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	logCloser  io.Closer
	store      store.Store
	engine     *timer.Engine
	sessions   *auth.SessionFile
	auth       *auth.Authenticator
	linear     *linear.Client
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, closer, err := logging.Open(verbose)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	logger = logger.With("cmd", cmd.Name())

	a := &app{cfg: cfg, configPath: configPath, logger: logger, logCloser: closer}

	a.store, err = openStore(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	policy, err := timer.ParsePolicy(cfg.StartPolicy)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = timer.NewEngine(a.store, policy, logger)
	logger.Debug("timer engine ready", "backend", cfg.Store.Backend, "start_policy", a.engine.Policy().String())

	sessionPath, err := config.SessionPath()
	if err != nil {
		a.close()
		return nil, err
	}
	a.sessions = auth.NewSessionFile(sessionPath)
	a.auth = a.newAuth(nil)
	a.linear = linear.NewFromConfig(cfg, linear.WithLogger(logger))
	return a, nil
}

// loadConfig reads --config, or the default config file.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendFirestore:
		s, err := firestorestore.New(ctx, cfg.Store.FirestoreProject, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, err
		}
		s, err := sqlitestore.Open(path, sqlitestore.Config{Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// newAuth builds an authenticator. Only login needs a provider; the other
// commands just read the persisted session.
func (a *app) newAuth(provider auth.Provider) *auth.Authenticator {
	return auth.New(auth.Config{
		Provider: provider,
		Allow:    auth.NewAllowList(a.cfg.AllowList()),
		Sessions: a.sessions,
		Logger:   a.logger,
	})
}

func (a *app) newLinear(token string) *linear.Client {
	return linear.NewClient(token, linear.WithEndpoint(a.cfg.LinearEndpoint), linear.WithLogger(a.logger))
}

// identity returns the persisted sign-in, failing when there is none.
func (a *app) identity() (*auth.Identity, error) {
	id, err := a.auth.Restore()
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errSignedOut
	}
	return id, nil
}

func (a *app) openSession(ctx context.Context) (*session.Session, error) {
	id, err := a.identity()
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, *id, a.engine, a.logger)
}

func (a *app) saveToken(token string) error {
	a.cfg.LinearAPIToken = token
	if err := config.SaveFile(a.configPath, a.cfg); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	a.linear = a.newLinear(a.cfg.Token())
	a.logger.Info("linear token updated")
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
