package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/catalog"
)

// Service implements cart operations. None of them require authentication.
type Service struct {
	carts    Repository
	products catalog.ProductRepository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products catalog.ProductRepository) *Service {
	return &Service{carts: carts, products: products, now: time.Now}
}

// Create starts an empty cart with a random v4 identifier.
func (s *Service) Create(ctx context.Context) (*Cart, error) {
	c := &Cart{
		ID:        uuid.New(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// Get returns the cart with its items, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Cart, error) {
	return s.carts.Get(ctx, id)
}

// Delete removes the cart and all of its items.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.carts.Delete(ctx, id); err != nil {
		return err
	}
	zctx.From(ctx).Info("Cart deleted", zap.Stringer("cart_id", id))
	return nil
}

// AddItem adds quantity of a product to the cart, merging into the existing
// line for that product if there is one.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*Item, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, apperr.WithField(catalog.ErrProductNotFound, "product_id")
		}
		return nil, errors.Wrap(err, "get product")
	}
	item, err := s.carts.AddItem(ctx, cartID, productID, quantity)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			// Product deleted between the check and the write.
			return nil, apperr.WithField(catalog.ErrProductNotFound, "product_id")
		}
		return nil, err
	}
	return item, nil
}

// GetItem returns one line of the cart.
func (s *Service) GetItem(ctx context.Context, cartID uuid.UUID, productID int64) (*Item, error) {
	if _, err := s.carts.Get(ctx, cartID); err != nil {
		return nil, err
	}
	return s.carts.GetItem(ctx, cartID, productID)
}

// UpdateItemQuantity overwrites the quantity of an existing line.
func (s *Service) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) (*Item, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	return s.carts.SetItemQuantity(ctx, cartID, productID, quantity)
}

// RemoveItem deletes the line for productID. Removing a product that is not
// in an existing cart is a no-op; an unknown cart yields ErrNotFound.
func (s *Service) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	removed, err := s.carts.RemoveItem(ctx, cartID, productID)
	if err != nil {
		return err
	}
	if !removed {
		// Distinguish "no such item" from "no such cart".
		if _, err := s.carts.Get(ctx, cartID); err != nil {
			return err
		}
	}
	return nil
}

func validateQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return ErrInvalidQuantity
	case quantity > MaxQuantity:
		return ErrQuantityTooLarge
	}
	return nil
}
