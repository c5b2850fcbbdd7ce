package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	lockCartSQL = `SELECT id FROM carts WHERE id = $1 FOR UPDATE`

	// Item rows are locked too, so quantities cannot change between the
	// snapshot and the commit.
	cartLinesSQL = `SELECT ci.product_id, p.title, ci.quantity, p.unit_price
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id
	FOR UPDATE OF ci`

	customerIDSQL = `SELECT id FROM customers WHERE user_id = $1`

	insertOrderSQL = `INSERT INTO orders (customer_id, placed_at, payment_status)
	VALUES ($1, $2, $3)
	RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	getOrderSQL = `SELECT id, customer_id, placed_at, payment_status FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, customer_id, placed_at, payment_status
	FROM orders
	WHERE $1::bigint IS NULL OR customer_id = $1
	ORDER BY id`

	listOrderItemsSQL = `SELECT oi.id, oi.order_id, oi.product_id, p.title, p.unit_price, oi.unit_price, oi.quantity
	FROM order_items oi
	JOIN products p ON p.id = oi.product_id
	WHERE oi.order_id = ANY($1)
	ORDER BY oi.id`

	updateOrderStatusSQL = `UPDATE orders SET payment_status = $2 WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var paymentCodes = map[order.PaymentStatus]string{
	order.PaymentPending:  "P",
	order.PaymentComplete: "C",
	order.PaymentFailed:   "F",
}

func paymentFromCode(code string) order.PaymentStatus {
	for s, c := range paymentCodes {
		if c == code {
			return s
		}
	}
	return order.PaymentPending
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InTx runs fn in a READ COMMITTED transaction. pgx rolls the transaction
// back when fn returns an error or panics.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

type orderTx struct {
	tx pgx.Tx
}

// LockCart blocks while another transaction holds the cart. Once that
// transaction commits the cart deletion, the re-evaluated row is gone and
// ErrCartNotFound is returned.
func (t *orderTx) LockCart(ctx context.Context, cartID uuid.UUID) error {
	var id uuid.UUID
	if err := t.tx.QueryRow(ctx, lockCartSQL, cartID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrCartNotFound
		}
		return errors.Wrapf(err, "lock cart %s", cartID)
	}
	return nil
}

func (t *orderTx) CartLines(ctx context.Context, cartID uuid.UUID) ([]order.Line, error) {
	rows, err := t.tx.Query(ctx, cartLinesSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "query cart lines")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ProductID, &l.ProductTitle, &l.Quantity, &l.UnitPrice)
		return l, err
	})
}

func (t *orderTx) CustomerID(ctx context.Context, userID string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, customerIDSQL, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, order.ErrNoCustomer
		}
		return 0, errors.Wrap(err, "get customer id")
	}
	return id, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return t.tx.QueryRow(ctx, insertOrderSQL,
		o.CustomerID, o.PlacedAt, paymentCodes[o.PaymentStatus],
	).Scan(&o.ID)
}

// InsertItems queues one insert per item and sends them in a single batch.
func (t *orderTx) InsertItems(ctx context.Context, items []order.Item) error {
	b := &pgx.Batch{}
	for i := range items {
		it := &items[i]
		b.Queue(insertOrderItemSQL, it.OrderID, it.Product.ID, it.Quantity, it.UnitPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	return t.tx.SendBatch(ctx, b).Close()
}

func (t *orderTx) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, deleteCartSQL, cartID)
	return err
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *OrderRepository) List(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, filter.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all orders with one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.Product.ID, &it.Product.Title,
			&it.Product.UnitPrice, &it.UnitPrice, &it.Quantity)
		return it, err
	})
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, paymentCodes[status])
	if err != nil {
		return errors.Wrapf(err, "update order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			return order.ErrOrderProtected
		}
		return errors.Wrapf(err, "delete order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		code     string
		placedAt time.Time
	)
	err := row.Scan(&o.ID, &o.CustomerID, &placedAt, &code)
	o.PlacedAt = placedAt.UTC()
	o.PaymentStatus = paymentFromCode(code)
	return o, err
}
