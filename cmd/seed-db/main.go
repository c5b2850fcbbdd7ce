// Command seed-db migrates the database and loads a demo catalog, an admin
// API key and a demo customer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type seedFile struct {
	Promotions []struct {
		Description string  `json:"description"`
		Discount    float64 `json:"discount"`
	} `json:"promotions"`
	Collections []seedCollection `json:"collections"`
}

type seedCollection struct {
	Title    string        `json:"title"`
	Products []seedProduct `json:"products"`
}

type seedProduct struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Inventory   int             `json:"inventory"`
	// Promotions are 1-based positions in the file's promotions list.
	Promotions []int `json:"promotions"`
}

// summaryRow is one line of the printed catalog summary.
type summaryRow struct {
	collection string
	products   int
	stock      decimal.Decimal
}

type options struct {
	databaseURL  string
	catalogFile  string
	apiKey       string
	apiKeyPepper string
	jwtSecret    string
	issuer       string
	demoUser     string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file, optionally .gz")
	flag.StringVar(&opts.apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", "", "secret used to sign the demo token (or SHOP_AUTH_JWT_SECRET env)")
	flag.StringVar(&opts.issuer, "issuer", "storefront", "issuer of the demo token")
	flag.StringVar(&opts.demoUser, "demo-user", "demo", "identity of the demo customer")
	flag.Parse()

	opts.databaseURL = orEnv(opts.databaseURL, "DATABASE_URL")
	opts.apiKey = orEnv(opts.apiKey, "SHOP_SEED_API_KEY")
	opts.apiKeyPepper = orEnv(opts.apiKeyPepper, "SHOP_API_KEY_PEPPER")
	opts.jwtSecret = orEnv(opts.jwtSecret, "SHOP_AUTH_JWT_SECRET")

	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or SHOP_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, opts.catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), opts.apiKey, opts.apiKeyPepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	if err := seedCustomer(ctx, pool, opts); err != nil {
		return errors.Wrap(err, "seed customer")
	}
	return nil
}

// readSeed decodes the catalog file, decompressing it when it ends in .gz.
func readSeed(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var seed seedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &seed, nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, path string) error {
	svc := catalog.NewService(postgres.NewCatalogRepository(pool))

	existing, err := svc.ListCollections(ctx)
	if err != nil {
		return errors.Wrap(err, "list collections")
	}
	if len(existing) > 0 {
		slog.Info("catalog already seeded, skipping", slog.Int("collections", len(existing)))
		return nil
	}

	slog.Info("reading catalog file", slog.String("path", path))
	seed, err := readSeed(path)
	if err != nil {
		return err
	}

	promotionIDs := make([]int64, 0, len(seed.Promotions))
	for _, sp := range seed.Promotions {
		p := catalog.Promotion{Description: sp.Description, Discount: sp.Discount}
		if err := svc.CreatePromotion(ctx, &p); err != nil {
			return errors.Wrapf(err, "create promotion %q", sp.Description)
		}
		promotionIDs = append(promotionIDs, p.ID)
	}

	summary := make([]summaryRow, len(seed.Collections))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sc := range seed.Collections {
		g.Go(func() error {
			row, err := seedCollectionProducts(ctx, svc, sc, promotionIDs)
			if err != nil {
				return errors.Wrapf(err, "collection %q", sc.Title)
			}
			summary[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return printSummary(os.Stdout, summary)
}

func seedCollectionProducts(ctx context.Context, svc *catalog.Service, sc seedCollection, promotionIDs []int64) (summaryRow, error) {
	c := catalog.Collection{Title: sc.Title}
	if err := svc.CreateCollection(ctx, &c); err != nil {
		return summaryRow{}, errors.Wrap(err, "create collection")
	}

	row := summaryRow{collection: c.Title, stock: decimal.Zero}
	for _, sp := range sc.Products {
		p := catalog.Product{
			Title:        sp.Title,
			Description:  sp.Description,
			UnitPrice:    sp.UnitPrice,
			Inventory:    sp.Inventory,
			CollectionID: c.ID,
		}
		for _, pos := range sp.Promotions {
			if pos < 1 || pos > len(promotionIDs) {
				return summaryRow{}, errors.Errorf("product %q references unknown promotion %d", sp.Title, pos)
			}
			p.PromotionIDs = append(p.PromotionIDs, promotionIDs[pos-1])
		}
		if err := svc.CreateProduct(ctx, &p); err != nil {
			return summaryRow{}, errors.Wrapf(err, "create product %q", sp.Title)
		}
		slog.Info("created product", slog.Int64("id", p.ID), slog.String("title", p.Title))

		if c.FeaturedProductID == nil {
			id := p.ID
			c.FeaturedProductID = &id
		}
		row.products++
		row.stock = row.stock.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Inventory))))
	}

	if c.FeaturedProductID != nil {
		if err := svc.UpdateCollection(ctx, &c); err != nil {
			return summaryRow{}, errors.Wrap(err, "set featured product")
		}
	}
	return row, nil
}

func printSummary(w io.Writer, rows []summaryRow) error {
	table := tablewriter.NewWriter(w)
	table.Header("Collection", "Products", "Stock value")
	for _, r := range rows {
		if err := table.Append(r.collection, r.products, r.stock.StringFixed(2)); err != nil {
			return errors.Wrap(err, "append summary row")
		}
	}
	if err := table.Render(); err != nil {
		return errors.Wrap(err, "render summary")
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo auth.Repository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	key := auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashAPIKey(apiKey, []byte(pepper)),
		Name:    "Seeded admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repo.Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", key.ID), slog.String("name", key.Name))
	return nil
}

// seedCustomer provisions the demo customer and, when a JWT secret is
// configured, prints a bearer token for it.
func seedCustomer(ctx context.Context, pool *pgxpool.Pool, opts options) error {
	svc := customer.NewService(postgres.NewCustomerRepository(pool))
	c, err := svc.Provision(ctx, opts.demoUser)
	if err != nil {
		return errors.Wrap(err, "provision demo customer")
	}
	slog.Info("provisioned customer", slog.Int64("id", c.ID), slog.String("user_id", c.UserID))

	if opts.jwtSecret == "" {
		slog.Info("no JWT secret given, skipping demo token")
		return nil
	}
	tokens := auth.NewTokenManager([]byte(opts.jwtSecret), opts.issuer, 30*24*time.Hour)
	token, err := tokens.Issue(c.UserID, false)
	if err != nil {
		return errors.Wrap(err, "issue demo token")
	}
	slog.Info("demo bearer token", slog.String("user_id", c.UserID), slog.String("token", token))
	return nil
}
