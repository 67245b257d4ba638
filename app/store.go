package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/ttms/config"
	"github.com/kilianp07/ttms/infra/logger"
	"github.com/kilianp07/ttms/infra/store/postgres"
	"github.com/kilianp07/ttms/infra/store/sqlite"
	"github.com/kilianp07/ttms/infra/store/sqlstore"
)

// OpenStore opens and migrates the configured schedule store.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (*sqlstore.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(ctx, cfg.DSN, log)
	case "postgres":
		return postgres.Open(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
