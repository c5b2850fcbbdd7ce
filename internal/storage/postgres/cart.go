package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	insertCartSQL = `INSERT INTO carts (id, created_at) VALUES ($1, $2)`

	getCartSQL = `SELECT created_at FROM carts WHERE id = $1`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`

	listCartItemsSQL = `SELECT ci.id, ci.product_id, p.title, p.unit_price, ci.quantity
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

	getCartItemSQL = `SELECT ci.id, ci.product_id, p.title, p.unit_price, ci.quantity
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1 AND ci.product_id = $2`

	// The upsert relies on the (cart_id, product_id) unique constraint, so
	// concurrent adds of the same product merge into one row. A merge past $4
	// updates nothing and returns no row. The sum is widened to integer so it
	// cannot overflow smallint before the comparison.
	addCartItemSQL = `WITH up AS (
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT cart_items_cart_product_key
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		WHERE cart_items.quantity::integer + EXCLUDED.quantity::integer <= $4
		RETURNING id, product_id, quantity
	)
	SELECT up.id, up.product_id, p.title, p.unit_price, up.quantity
	FROM up JOIN products p ON p.id = up.product_id`

	setCartItemQuantitySQL = `WITH up AS (
		UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2
		RETURNING id, product_id, quantity
	)
	SELECT up.id, up.product_id, p.title, p.unit_price, up.quantity
	FROM up JOIN products p ON p.id = up.product_id`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	if _, err := r.pool.Exec(ctx, insertCartSQL, c.ID, c.CreatedAt); err != nil {
		return errors.Wrapf(err, "create cart %s", c.ID)
	}
	return nil
}

// Get reads the cart and its items in one repeatable-read snapshot.
func (r *CartRepository) Get(ctx context.Context, id uuid.UUID) (*cart.Cart, error) {
	c := &cart.Cart{ID: id}
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, getCartSQL, id).Scan(&c.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrNotFound
			}
			return err
		}
		rows, err := tx.Query(ctx, listCartItemsSQL, id)
		if err != nil {
			return err
		}
		items, err := pgx.CollectRows(rows, scanCartItem(id))
		if err != nil {
			return err
		}
		c.Items = items
		return nil
	})
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart %s", id)
	}
	return c, nil
}

func (r *CartRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, deleteCartSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete cart %s", id)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (r *CartRepository) AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, addCartItemSQL, cartID, productID, quantity, cart.MaxQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem(cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conflicting line exists but the merge guard rejected it.
			return nil, cart.ErrQuantityTooLarge
		}
		if name, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			if name == "cart_items_cart_id_fkey" {
				return nil, cart.ErrNotFound
			}
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "add cart item")
	}
	return &it, nil
}

func (r *CartRepository) GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, getCartItemSQL, cartID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart item")
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem(cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "get cart item")
	}
	return &it, nil
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, setCartItemQuantitySQL, cartID, productID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem(cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "update cart item")
	}
	return &it, nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, cartID, productID)
	if err != nil {
		return false, errors.Wrap(err, "remove cart item")
	}
	return tag.RowsAffected() > 0, nil
}

func scanCartItem(cartID uuid.UUID) pgx.RowToFunc[cart.Item] {
	return func(row pgx.CollectableRow) (cart.Item, error) {
		it := cart.Item{CartID: cartID}
		err := row.Scan(&it.ID, &it.Product.ID, &it.Product.Title, &it.Product.UnitPrice, &it.Quantity)
		return it, err
	}
}
