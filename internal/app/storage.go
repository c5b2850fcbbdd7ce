package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
)

// repositories is the storage backend selected by Config.Storage.
type repositories struct {
	catalog   catalog.Repository
	carts     cart.Repository
	orders    order.Repository
	customers customer.Repository
	apikeys   auth.Repository
	pinger    health.Pinger
	close     func()
}

// openStorage connects to the configured backend. PostgreSQL is migrated
// before use.
func openStorage(ctx context.Context, cfg *Config) (*repositories, error) {
	switch cfg.Storage {
	case StorageMemory:
		store := memory.New()
		return &repositories{
			catalog:   store.Catalog(),
			carts:     store.Carts(),
			orders:    store.Orders(),
			customers: store.Customers(),
			apikeys:   store.APIKeys(),
			pinger:    store,
			close:     func() {},
		}, nil
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &repositories{
			catalog:   postgres.NewCatalogRepository(pool),
			carts:     postgres.NewCartRepository(pool),
			orders:    postgres.NewOrderRepository(pool),
			customers: postgres.NewCustomerRepository(pool),
			apikeys:   postgres.NewAPIKeyRepository(pool),
			pinger:    pool,
			close:     pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage %q", cfg.Storage)
	}
}
