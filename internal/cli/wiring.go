package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stormline/provision/internal/config"
	"github.com/stormline/provision/internal/identity"
	"github.com/stormline/provision/internal/provisioning"
	"github.com/stormline/provision/internal/store"
)

// backends holds the connected stores for one command invocation.
type backends struct {
	pool     *pgxpool.Pool
	identity *identity.Client
	profiles *store.ProfileStore
}

// connect loads config, opens the Postgres pool and builds the identity
// client. Callers must Close when done.
func connect(ctx context.Context) (*config.Config, *backends, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	client := identity.NewClient(
		cfg.Identity.URL,
		cfg.Identity.ServiceRoleKey,
		cfg.Identity.PageSize,
		cfg.Identity.Timeout,
	)

	return cfg, &backends{
		pool:     pool,
		identity: client,
		profiles: store.NewProfileStore(pool),
	}, nil
}

// newAdapter builds a fresh Adapter. The adapter caches identity lookups per
// instance, so every run gets its own.
func (b *backends) newAdapter() provisioning.Adapter {
	return store.NewAdapter(b.identity, b.profiles)
}

// Close releases the database pool.
func (b *backends) Close() {
	b.pool.Close()
}
