package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feedbackd/feedbackd/internal/config"
	"github.com/feedbackd/feedbackd/internal/ratelimit"
	"github.com/feedbackd/feedbackd/internal/ratelimit/redisstore"
	"github.com/feedbackd/feedbackd/internal/store"
)

// windowBackend is an opened rate window store and its optional
// capabilities.
type windowBackend struct {
	driver string
	store  ratelimit.WindowStore
	admin  ratelimit.WindowAdmin
	pinger ratelimit.Pinger
	close  func() error
}

func (b *windowBackend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// openWindowStore opens the backend selected by store.driver.
func openWindowStore(ctx context.Context, cfg *config.Config) (*windowBackend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory, "":
		mem := ratelimit.NewMemoryStore()
		return &windowBackend{driver: config.StoreDriverMemory, store: mem, admin: mem}, nil

	case config.StoreDriverLibsql:
		db, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &windowBackend{driver: config.StoreDriverLibsql, store: db, admin: db, pinger: db, close: db.Close}, nil

	case config.StoreDriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := redisstore.New(rdb, redisstore.WithPrefix(cfg.Redis.KeyPrefix))

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return &windowBackend{driver: config.StoreDriverRedis, store: rs, admin: rs, pinger: rs, close: rdb.Close}, nil
	}
	return nil, fmt.Errorf("unsupported store.driver: %q", cfg.Store.Driver)
}

// openPersistentStore is openWindowStore for admin commands, which are
// meaningless against a fresh in-memory store.
func openPersistentStore(ctx context.Context) (*config.Config, *windowBackend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == config.StoreDriverMemory {
		return nil, nil, fmt.Errorf("store.driver is %q; rate-limit commands need libsql or redis", cfg.Store.Driver)
	}
	backend, err := openWindowStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backend, nil
}

// selectWindows lists the windows matching q, pushing the filter down to
// SQL when the backend supports it.
func selectWindows(ctx context.Context, admin ratelimit.WindowAdmin, q store.WindowQuery) ([]ratelimit.WindowEntry, error) {
	if db, ok := admin.(*store.Store); ok {
		return db.ListWindows(ctx, q)
	}
	entries, err := admin.Windows(ctx)
	if err != nil {
		return nil, err
	}
	selected := entries[:0]
	for _, entry := range entries {
		if q.Matches(entry.UserID) {
			selected = append(selected, entry)
		}
	}
	return selected, nil
}

// resetWindows deletes the windows matching q and returns the number of
// users cleared.
func resetWindows(ctx context.Context, admin ratelimit.WindowAdmin, q store.WindowQuery) (int, error) {
	if db, ok := admin.(*store.Store); ok {
		return db.ResetWindows(ctx, q)
	}
	if q.All {
		return admin.Reset(ctx, "")
	}
	entries, err := selectWindows(ctx, admin, q)
	if err != nil {
		return 0, err
	}
	cleared := 0
	for _, entry := range entries {
		n, err := admin.Reset(ctx, entry.UserID)
		if err != nil {
			return cleared, err
		}
		cleared += n
	}
	return cleared, nil
}
