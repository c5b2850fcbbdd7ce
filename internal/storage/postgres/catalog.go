package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	selectProductSQL = `SELECT p.id, p.title, p.slug, p.description, p.unit_price, p.inventory,
		p.collection_id, p.last_update,
		COALESCE(array_agg(pp.promotion_id ORDER BY pp.promotion_id)
			FILTER (WHERE pp.promotion_id IS NOT NULL), '{}')
	FROM products p
	LEFT JOIN product_promotions pp ON pp.product_id = p.id`

	listProductsSQL = selectProductSQL + `
	WHERE $1::bigint = 0 OR p.collection_id = $1
	GROUP BY p.id
	ORDER BY p.title, p.id`

	getProductSQL = selectProductSQL + `
	WHERE p.id = $1
	GROUP BY p.id`

	insertProductSQL = `INSERT INTO products (title, slug, description, unit_price, inventory, collection_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, last_update`

	updateProductSQL = `UPDATE products
	SET title = $2, slug = $3, description = $4, unit_price = $5, inventory = $6,
		collection_id = $7, last_update = now()
	WHERE id = $1
	RETURNING last_update`

	deleteProductPromotionsSQL = `DELETE FROM product_promotions WHERE product_id = $1`

	insertProductPromotionsSQL = `INSERT INTO product_promotions (product_id, promotion_id)
	SELECT $1, unnest($2::bigint[])
	ON CONFLICT DO NOTHING`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	countOrderItemsSQL = `SELECT count(*) FROM order_items WHERE product_id = $1`

	selectCollectionSQL = `SELECT c.id, c.title, c.featured_product_id, count(p.id)
	FROM collections c
	LEFT JOIN products p ON p.collection_id = c.id`

	listCollectionsSQL = selectCollectionSQL + `
	GROUP BY c.id
	ORDER BY c.title, c.id`

	getCollectionSQL = selectCollectionSQL + `
	WHERE c.id = $1
	GROUP BY c.id`

	insertCollectionSQL = `INSERT INTO collections (title, featured_product_id)
	VALUES ($1, $2)
	RETURNING id`

	updateCollectionSQL = `UPDATE collections SET title = $2, featured_product_id = $3 WHERE id = $1`

	deleteCollectionSQL = `DELETE FROM collections WHERE id = $1`

	listPromotionsSQL = `SELECT id, description, discount FROM promotions ORDER BY id`

	insertPromotionSQL = `INSERT INTO promotions (description, discount) VALUES ($1, $2) RETURNING id`

	listReviewsSQL = `SELECT id, product_id, name, description, date
	FROM reviews WHERE product_id = $1 ORDER BY id`

	insertReviewSQL = `INSERT INTO reviews (product_id, name, description)
	VALUES ($1, $2, $3)
	RETURNING id, date`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListProducts returns products ordered by title, optionally limited to one
// collection.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, filter.CollectionID)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetProduct returns a single product by its identifier.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// CreateProduct inserts p together with its promotion links.
func (r *CatalogRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertProductSQL,
			p.Title, p.Slug, p.Description, p.UnitPrice, p.Inventory, p.CollectionID,
		).Scan(&p.ID, &p.LastUpdate)
		if err != nil {
			return err
		}
		return linkPromotions(ctx, tx, p)
	})
	if err != nil {
		return productWriteError(err)
	}
	return nil
}

// UpdateProduct replaces the product and its promotion links.
func (r *CatalogRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, updateProductSQL,
			p.ID, p.Title, p.Slug, p.Description, p.UnitPrice, p.Inventory, p.CollectionID,
		).Scan(&p.LastUpdate)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return catalog.ErrProductNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, deleteProductPromotionsSQL, p.ID); err != nil {
			return err
		}
		return linkPromotions(ctx, tx, p)
	})
	if err != nil {
		return productWriteError(err)
	}
	return nil
}

func linkPromotions(ctx context.Context, tx pgx.Tx, p *catalog.Product) error {
	if len(p.PromotionIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, insertProductPromotionsSQL, p.ID, p.PromotionIDs)
	return err
}

func productWriteError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if name, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		switch {
		case strings.Contains(name, "collection"):
			return apperr.WithField(catalog.ErrCollectionNotFound, "collection")
		case strings.Contains(name, "promotion"):
			return catalog.ErrPromotionNotFound
		}
	}
	return errors.Wrap(err, "write product")
}

// DeleteProduct removes a product. Cart items and reviews cascade; order
// items block the delete through a RESTRICT foreign key.
func (r *CatalogRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			return catalog.ErrProductReferenced
		}
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// CountOrderItems returns how many order items reference the product.
func (r *CatalogRepository) CountOrderItems(ctx context.Context, productID int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrderItemsSQL, productID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count order items of product %d", productID)
	}
	return n, nil
}

// ListCollections returns all collections with product counts, ordered by
// title.
func (r *CatalogRepository) ListCollections(ctx context.Context) ([]catalog.Collection, error) {
	rows, err := r.pool.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return pgx.CollectRows(rows, scanCollection)
}

// GetCollection returns a single collection by its identifier.
func (r *CatalogRepository) GetCollection(ctx context.Context, id int64) (*catalog.Collection, error) {
	rows, err := r.pool.Query(ctx, getCollectionSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get collection %d", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCollection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCollectionNotFound
		}
		return nil, errors.Wrapf(err, "get collection %d", id)
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCollection(ctx context.Context, c *catalog.Collection) error {
	err := r.pool.QueryRow(ctx, insertCollectionSQL, c.Title, c.FeaturedProductID).Scan(&c.ID)
	if err != nil {
		return collectionWriteError(err)
	}
	return nil
}

func (r *CatalogRepository) UpdateCollection(ctx context.Context, c *catalog.Collection) error {
	tag, err := r.pool.Exec(ctx, updateCollectionSQL, c.ID, c.Title, c.FeaturedProductID)
	if err != nil {
		return collectionWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCollectionNotFound
	}
	return nil
}

func collectionWriteError(err error) error {
	if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		return apperr.WithField(catalog.ErrProductNotFound, "featured_product")
	}
	return errors.Wrap(err, "write collection")
}

// DeleteCollection removes a collection that no product belongs to.
func (r *CatalogRepository) DeleteCollection(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCollectionSQL, id)
	if err != nil {
		if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			return catalog.ErrCollectionNotEmpty
		}
		return errors.Wrapf(err, "delete collection %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCollectionNotFound
	}
	return nil
}

func (r *CatalogRepository) ListPromotions(ctx context.Context) ([]catalog.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Promotion, error) {
		var p catalog.Promotion
		err := row.Scan(&p.ID, &p.Description, &p.Discount)
		return p, err
	})
}

func (r *CatalogRepository) CreatePromotion(ctx context.Context, p *catalog.Promotion) error {
	if err := r.pool.QueryRow(ctx, insertPromotionSQL, p.Description, p.Discount).Scan(&p.ID); err != nil {
		return errors.Wrap(err, "create promotion")
	}
	return nil
}

func (r *CatalogRepository) ListReviews(ctx context.Context, productID int64) ([]catalog.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, productID)
	if err != nil {
		return nil, errors.Wrapf(err, "list reviews of product %d", productID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Review, error) {
		var rv catalog.Review
		err := row.Scan(&rv.ID, &rv.ProductID, &rv.Name, &rv.Description, &rv.Date)
		return rv, err
	})
}

func (r *CatalogRepository) CreateReview(ctx context.Context, rv *catalog.Review) error {
	err := r.pool.QueryRow(ctx, insertReviewSQL, rv.ProductID, rv.Name, rv.Description).Scan(&rv.ID, &rv.Date)
	if err != nil {
		if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			return catalog.ErrProductNotFound
		}
		return errors.Wrap(err, "create review")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Description, &p.UnitPrice, &p.Inventory,
		&p.CollectionID, &p.LastUpdate, &p.PromotionIDs,
	)
	return p, err
}

func scanCollection(row pgx.CollectableRow) (catalog.Collection, error) {
	var c catalog.Collection
	err := row.Scan(&c.ID, &c.Title, &c.FeaturedProductID, &c.ProductsCount)
	return c, err
}
