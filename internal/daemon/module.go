package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pvieira94/courier/internal/attach"
	"github.com/pvieira94/courier/internal/bus"
	"github.com/pvieira94/courier/internal/config"
	"github.com/pvieira94/courier/internal/lock"
	"github.com/pvieira94/courier/internal/logging"
	"github.com/pvieira94/courier/internal/pipeline"
	"github.com/pvieira94/courier/internal/prefs"
	"github.com/pvieira94/courier/internal/session"
	"github.com/pvieira94/courier/internal/store"
	"github.com/pvieira94/courier/internal/transport"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	// Transport overrides the HTTP transport built from config; used in
	// tests. Nil means build from config.API.
	Transport pipeline.Transport
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			providePrefs,
			provideDB,
			provideStore,
			provideCache,
			provideTransport,
			providePipeline,
		),
		fx.Invoke(bindReleaser, registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		// Missing config is fine; limits fall back to defaults.
		return config.Default(), nil
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func providePrefs(p Params) (*prefs.Store, error) {
	return prefs.Open(session.PrefsPath(p.SessionName))
}

func provideDB(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store database ready", zap.String("path", dbPath))
	return db, nil
}

func provideStore(cfg *config.Config, pf *prefs.Store, b *bus.Bus) *store.Store {
	return store.New(pf, b, cfg.Limits.MaxReplies)
}

func provideCache(p Params, st *store.Store, b *bus.Bus, logger *zap.Logger) *attach.Cache {
	return attach.New(session.PreviewDir(p.SessionName), st, b, logger)
}

func provideTransport(p Params, cfg *config.Config) pipeline.Transport {
	if p.Transport != nil {
		return p.Transport
	}
	return transport.NewHTTP(cfg.API.BaseURL)
}

func providePipeline(cfg *config.Config, st *store.Store, cache *attach.Cache, tp pipeline.Transport, b *bus.Bus, logger *zap.Logger) *pipeline.Pipeline {
	creds := pipeline.Credentials{Token: cfg.API.Token}
	return pipeline.New(st, cache, tp, creds, b, logger, cfg.Limits.MaxAttachments)
}

// bindReleaser closes the store → cache cycle: the store releases attachment
// entries through the cache whenever a draft stops referencing them.
func bindReleaser(st *store.Store, cache *attach.Cache) {
	st.SetFileReleaser(cache)
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, st *store.Store, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			state, err := db.LoadState()
			if err != nil {
				return err
			}
			st.Hydrate(state)
			logger.Info("state hydrated",
				zap.Int("drafts", len(state.Drafts)),
				zap.Int("outbox_channels", len(state.Outbox)))
			return nil
		},
		OnStop: func(_ context.Context) error {
			if err := db.SaveState(st.Export()); err != nil {
				logger.Error("failed to persist state", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
