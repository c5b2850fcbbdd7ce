// Package cart manages the mutable, pre-order set of line items.
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// MaxQuantity is the largest quantity a cart or order line can hold. Merged
// adds are bounded by it as well.
const MaxQuantity = 32767

var (
	ErrNotFound     = apperr.NotFound("", "cart not found")
	ErrItemNotFound = apperr.NotFound("", "cart item not found")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = apperr.Validation("quantity", "ensure this value is greater than or equal to 1")
	// ErrQuantityTooLarge is returned when a quantity, or the total after
	// merging an add into an existing line, exceeds MaxQuantity.
	ErrQuantityTooLarge = apperr.Validation("quantity", "ensure this value is less than or equal to 32767")
)

// Cart is an anonymous shopping cart addressed by a random identifier.
type Cart struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Items     []Item
}

// TotalPrice sums the line totals of all items.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.TotalPrice())
	}
	return total
}

// Item is one (cart, product) line. A cart holds at most one item per product.
type Item struct {
	ID       int64
	CartID   uuid.UUID
	Product  ProductRef
	Quantity int
}

// TotalPrice is the item's live line total: current unit price × quantity.
func (it Item) TotalPrice() decimal.Decimal {
	return it.Product.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ProductRef is the slice of a product a cart item displays.
type ProductRef struct {
	ID        int64
	Title     string
	UnitPrice decimal.Decimal
}

// Repository persists carts and their items.
//
// Implementations return ErrNotFound for unknown carts and
// catalog.ErrProductNotFound when AddItem references an unknown product.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	// Get returns the cart with its items ordered by item ID.
	Get(ctx context.Context, id uuid.UUID) (*Cart, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AddItem inserts the (cart, product) item or, if it exists, increments its
	// quantity by quantity in a single atomic statement. It returns
	// ErrQuantityTooLarge, leaving the line unchanged, when the merged
	// quantity would exceed MaxQuantity.
	AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*Item, error)
	GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*Item, error)
	// SetItemQuantity overwrites the quantity; ErrItemNotFound if absent.
	SetItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*Item, error)
	// RemoveItem reports whether a row was deleted.
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) (bool, error)
}
