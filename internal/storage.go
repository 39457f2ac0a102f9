package internal

import (
	"context"
	"fmt"
	"log"

	"issue-tracker-api/internal/config"
	"issue-tracker-api/internal/store"
	"issue-tracker-api/internal/store/memory"
	"issue-tracker-api/internal/store/mongostore"
	"issue-tracker-api/internal/store/sqlstore"
)

// OpenStore connects the backend named by cfg.StoreDriver. SQL backends are
// migrated before they are returned.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Println("store: using in-memory store, data is lost on restart")
		return memory.New(), nil

	case config.DriverMongo:
		s, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.DriverPostgres, config.DriverSQLite:
		var (
			s   *sqlstore.Store
			err error
		)
		if cfg.StoreDriver == config.DriverPostgres {
			s, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseDSN, cfg.DatabaseDriver)
		} else {
			s, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
		}
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
