// Package app assembles the store, services and router from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/api"
	"github.com/editorhub/editors/internal/cache"
	"github.com/editorhub/editors/internal/db"
	"github.com/editorhub/editors/internal/events"
	"github.com/editorhub/editors/internal/lock"
	"github.com/editorhub/editors/internal/review"
	"github.com/editorhub/editors/internal/seed"
	"github.com/editorhub/editors/internal/storage"
	"github.com/editorhub/editors/pkg/auth"
	"github.com/editorhub/editors/pkg/config"
	"github.com/editorhub/editors/pkg/logging"
)

// Store is implemented by both db.Store and db.MemoryStore
type Store interface {
	api.Store
	lock.Store
	review.Store
	seed.Store
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*db.Store)(nil)
	_ Store = (*db.MemoryStore)(nil)
)

// OpenStore connects the configured database driver
func OpenStore(cfg *config.Config) (Store, error) {
	if cfg.Database.Driver == "memory" {
		logging.GetLogger().Warn("Using in-memory store; data is lost on exit")
		return db.NewMemoryStore(), nil
	}
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return db.NewStore(database), nil
}

// App holds the assembled services
type App struct {
	Store   Store
	Cache   *cache.Cache
	Blobs   storage.BlobStore
	Tokens  *auth.Tokens
	Events  events.Publisher
	Locks   *lock.Manager
	Reviews *review.Service
}

// New opens every backend named in cfg
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.WithComponent("app")

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	var redisCache *cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(&cfg.Redis)
		if err != nil {
			// The cache is optional; continue without it.
			logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		}
	}

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open blob storage: %w", err)
	}

	return &App{
		Store:   store,
		Cache:   redisCache,
		Blobs:   blobs,
		Tokens:  auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Events:  events.New(&cfg.Events),
		Locks:   lock.NewManager(store, cfg.Lock.Duration),
		Reviews: review.NewService(store),
	}, nil
}

// Router builds the HTTP router over the app's services
func (a *App) Router() *api.Router {
	return api.NewRouter(api.Deps{
		Store:   a.Store,
		Locks:   a.Locks,
		Reviews: a.Reviews,
		Blobs:   a.Blobs,
		Tokens:  a.Tokens,
		Cache:   a.Cache,
		Events:  a.Events,
	})
}

// Close releases the store, cache and event publisher
func (a *App) Close() error {
	if err := a.Events.Close(); err != nil {
		logging.WithComponent("app").Warn("Failed to close event publisher", zap.Error(err))
	}
	if err := a.Cache.Close(); err != nil {
		logging.WithComponent("app").Warn("Failed to close cache", zap.Error(err))
	}
	return a.Store.Close()
}
