// Package catalog holds products, collections, promotions and reviews.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Bounds enforced on product writes.
const (
	MinInventory = 1
	MaxInventory = 1000
	maxTitleLen  = 255
)

// MaxUnitPrice is the largest price a NUMERIC(6,2) column can hold.
var MaxUnitPrice = decimal.RequireFromString("9999.99")

var (
	ErrProductNotFound    = apperr.NotFound("", "product not found")
	ErrCollectionNotFound = apperr.NotFound("", "collection not found")
	ErrPromotionNotFound  = apperr.NotFound("promotions", "promotion not found")
	ErrProductReferenced  = apperr.Conflict("product belongs to order items so it cannot be deleted")
	ErrCollectionNotEmpty = apperr.Conflict("collection still has products so it cannot be deleted")
)

// Product is a purchasable catalog item.
type Product struct {
	ID           int64
	Title        string
	Slug         string
	Description  string
	UnitPrice    decimal.Decimal
	Inventory    int
	CollectionID int64
	PromotionIDs []int64
	LastUpdate   time.Time
}

// PriceWithTax returns the unit price with rate applied, rounded to cents.
func (p Product) PriceWithTax(rate decimal.Decimal) decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// Collection groups products. FeaturedProductID is cleared when the featured
// product is deleted.
type Collection struct {
	ID                int64
	Title             string
	FeaturedProductID *int64
	ProductsCount     int
}

// Promotion is a discount campaign products can be attached to.
type Promotion struct {
	ID          int64
	Description string
	Discount    float64
}

// Review is a customer review left on a product.
type Review struct {
	ID          int64
	ProductID   int64
	Name        string
	Description string
	Date        time.Time
}

// ProductFilter narrows ListProducts. Zero value lists everything.
type ProductFilter struct {
	CollectionID int64
}

// ProductRepository persists products.
type ProductRepository interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	// GetProduct returns ErrProductNotFound when id does not exist.
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	// DeleteProduct returns ErrProductReferenced if order items still point
	// at the product, even when CountOrderItems raced with a new order.
	DeleteProduct(ctx context.Context, id int64) error
	CountOrderItems(ctx context.Context, productID int64) (int, error)
}

// CollectionRepository persists collections.
type CollectionRepository interface {
	ListCollections(ctx context.Context) ([]Collection, error)
	GetCollection(ctx context.Context, id int64) (*Collection, error)
	CreateCollection(ctx context.Context, c *Collection) error
	UpdateCollection(ctx context.Context, c *Collection) error
	DeleteCollection(ctx context.Context, id int64) error
}

// PromotionRepository persists promotions.
type PromotionRepository interface {
	ListPromotions(ctx context.Context) ([]Promotion, error)
	CreatePromotion(ctx context.Context, p *Promotion) error
}

// ReviewRepository persists reviews.
type ReviewRepository interface {
	ListReviews(ctx context.Context, productID int64) ([]Review, error)
	CreateReview(ctx context.Context, r *Review) error
}

// Repository is the full catalog store.
type Repository interface {
	ProductRepository
	CollectionRepository
	PromotionRepository
	ReviewRepository
}
