// Package order turns carts into immutable orders.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// PaymentStatus tracks payment of an order. It is changed only by staff.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentComplete PaymentStatus = "complete"
	PaymentFailed   PaymentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentComplete, PaymentFailed:
		return true
	}
	return false
}

var (
	ErrNotFound = apperr.NotFound("", "order not found")
	// ErrCartNotFound is returned when the submitted cart does not exist,
	// including when a concurrent request already turned it into an order.
	ErrCartNotFound = apperr.NotFound("cart_id", "no cart with this id exists")
	ErrEmptyCart    = apperr.Validation("cart_id", "cart is empty")
	// ErrNoCustomer is returned when the caller's identity has no customer.
	ErrNoCustomer     = apperr.NotFound("", "no customer is linked to this identity")
	ErrInvalidStatus  = apperr.Validation("payment_status", "not a valid choice")
	ErrOrderProtected = apperr.Conflict("order has items so it cannot be deleted")
)

// Order is a placed order. PlacedAt and CustomerID never change after
// creation.
type Order struct {
	ID            int64
	CustomerID    int64
	PlacedAt      time.Time
	PaymentStatus PaymentStatus
	Items         []Item
}

// TotalPrice sums the snapshot line totals.
func (o *Order) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Item is an order line. UnitPrice is the product price captured when the
// order was placed; Product.UnitPrice is the live catalog price.
type Item struct {
	ID        int64
	OrderID   int64
	Product   ProductRef
	UnitPrice decimal.Decimal
	Quantity  int
}

// ProductRef is the slice of a product an order item displays.
type ProductRef struct {
	ID        int64
	Title     string
	UnitPrice decimal.Decimal
}

// Line is a cart item paired with its product's price as read inside the
// placement transaction.
type Line struct {
	ProductID    int64
	ProductTitle string
	Quantity     int
	UnitPrice    decimal.Decimal
}

// Tx is the set of reads and writes the placement workflow performs inside a
// single transaction.
type Tx interface {
	// LockCart locks the cart row until the transaction ends. It returns
	// ErrCartNotFound if the cart does not exist (or was deleted by a
	// transaction that committed while this one waited for the lock).
	LockCart(ctx context.Context, cartID uuid.UUID) error
	// CartLines reads every item of the cart joined with its product's
	// current price in one statement.
	CartLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	// CustomerID resolves the customer linked to userID, or ErrNoCustomer.
	CustomerID(ctx context.Context, userID string) (int64, error)
	// InsertOrder stores o and sets o.ID.
	InsertOrder(ctx context.Context, o *Order) error
	// InsertItems stores all items in one bulk write and sets their IDs.
	InsertItems(ctx context.Context, items []Item) error
	// DeleteCart removes the cart and its items.
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

// UnitOfWork runs fn inside a transaction. The transaction commits only if fn
// returns nil; any error or panic rolls it back entirely.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Filter narrows List. A nil CustomerID lists every order.
type Filter struct {
	CustomerID *int64
}

// Repository persists orders.
type Repository interface {
	UnitOfWork
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error
	// Delete returns ErrOrderProtected while order items reference the order.
	Delete(ctx context.Context, id int64) error
}
