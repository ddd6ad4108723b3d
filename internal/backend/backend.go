// Package backend selects and opens the data sources behind the views.
package backend

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tahfeez/internal/attendance"
	"tahfeez/internal/catalog"
	"tahfeez/internal/config"
	"tahfeez/internal/recitation"
	"tahfeez/internal/seed"
	"tahfeez/internal/store"
)

// Backends are the opened data sources.
type Backends struct {
	Catalog     catalog.Source
	Attendance  attendance.Source
	Recitations recitation.Store
	// Rosters is set when the redis roster cache is enabled; Attendance
	// then reads through it.
	Rosters *attendance.RedisSource
	DB      *store.DB
	Redis   *store.Redis
	Health  map[string]func(ctx context.Context) bool
}

// Open builds the backends named by cfg. A postgres backend whose ping fails
// is still returned so the service can come up and report itself unhealthy.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*Backends, error) {
	b := &Backends{Health: map[string]func(ctx context.Context) bool{}}

	switch cfg.DataBackend {
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if db == nil {
			return nil, err
		}
		if err != nil {
			log.Warn("database not reachable", zap.Error(err))
		} else if cfg.DBMigrate {
			if err := db.Migrate(ctx, log); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		b.DB = db
		b.Catalog = catalog.NewRepository(db.Client)
		b.Attendance = attendance.NewRepository(db.Client)
		b.Recitations = recitation.NewRepository(db.Client)
		b.Health["db"] = db.Healthy
	case "memory":
		ds, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		log.Info("serving in-memory dataset", zap.String("seed_file", cfg.SeedFile))
		b.Catalog, b.Attendance, b.Recitations = ds, ds, ds
	default:
		return nil, errors.Errorf("unknown data backend %q", cfg.DataBackend)
	}

	if cfg.RosterCache || cfg.QueueBackend == "redis" {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.Health["redis"] = b.Redis.Healthy
	}
	if cfg.RosterCache {
		b.Rosters = attendance.NewRedisSource(b.Redis.Client, b.Attendance, cfg.RosterTTL, log)
		b.Attendance = b.Rosters
	}
	return b, nil
}

func loadSeed(path string) (*seed.Dataset, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}

// Close releases every opened connection.
func (b *Backends) Close() error {
	var first error
	if err := b.DB.Close(); err != nil {
		first = err
	}
	if err := b.Redis.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
