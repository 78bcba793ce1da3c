package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/config"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store/memory"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store/postgres"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store/sqlite"
)

// openStore builds the storage backend named by the configuration.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, postgres.Options{
			URL:          cfg.Database.URL,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			HNSWMinCases: cfg.Matching.HNSWMinCases,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
