package memory

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

func seedProduct(t *testing.T, s *Store, price string) *catalog.Product {
	t.Helper()
	ctx := context.Background()

	col := &catalog.Collection{Title: "Tools"}
	require.NoError(t, s.Catalog().CreateCollection(ctx, col))

	p := &catalog.Product{
		Title:        "Hammer",
		Slug:         "hammer",
		UnitPrice:    decimal.RequireFromString(price),
		Inventory:    10,
		CollectionID: col.ID,
	}
	require.NoError(t, s.Catalog().CreateProduct(ctx, p))
	return p
}

func seedCart(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.Carts().Create(context.Background(), &cart.Cart{ID: id, CreatedAt: time.Now()}))
	return id
}

func TestCartRepository_AddItemMerges(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "10.00")
	cartID := seedCart(t, s)

	_, err := s.Carts().AddItem(ctx, cartID, p.ID, 2)
	require.NoError(t, err)
	it, err := s.Carts().AddItem(ctx, cartID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, it.Quantity)

	c, err := s.Carts().Get(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.True(t, decimal.RequireFromString("50.00").Equal(c.TotalPrice()))
}

func TestCartRepository_AddItemUnknown(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "10.00")
	cartID := seedCart(t, s)

	_, err := s.Carts().AddItem(ctx, uuid.New(), p.ID, 1)
	require.ErrorIs(t, err, cart.ErrNotFound)

	_, err = s.Carts().AddItem(ctx, cartID, p.ID+100, 1)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCartRepository_AddItemMergeBound(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "1.00")
	cartID := seedCart(t, s)

	_, err := s.Carts().AddItem(ctx, cartID, p.ID, cart.MaxQuantity-1)
	require.NoError(t, err)
	_, err = s.Carts().AddItem(ctx, cartID, p.ID, 2)
	require.ErrorIs(t, err, cart.ErrQuantityTooLarge)

	it, err := s.Carts().GetItem(ctx, cartID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.MaxQuantity-1, it.Quantity)
}

func TestOrderRepository_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "10.00")
	cartID := seedCart(t, s)
	_, err := s.Carts().AddItem(ctx, cartID, p.ID, 1)
	require.NoError(t, err)

	boom := errors.New("disk full")
	err = s.Orders().InTx(ctx, func(ctx context.Context, tx order.Tx) error {
		o := &order.Order{CustomerID: 1, PlacedAt: time.Now(), PaymentStatus: order.PaymentPending}
		require.NoError(t, tx.InsertOrder(ctx, o))
		require.NoError(t, tx.DeleteCart(ctx, cartID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	orders, err := s.Orders().List(ctx, order.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = s.Carts().Get(ctx, cartID)
	require.NoError(t, err, "cart must survive a rolled back transaction")
}

func TestOrderRepository_InTxPanicDiscards(t *testing.T) {
	ctx := context.Background()
	s := New()
	cartID := seedCart(t, s)

	assert.Panics(t, func() {
		_ = s.Orders().InTx(ctx, func(ctx context.Context, tx order.Tx) error {
			require.NoError(t, tx.DeleteCart(ctx, cartID))
			panic("boom")
		})
	})

	_, err := s.Carts().Get(ctx, cartID)
	require.NoError(t, err)
}

func TestCatalogRepository_DeleteProductReferenced(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "10.00")

	err := s.Orders().InTx(ctx, func(ctx context.Context, tx order.Tx) error {
		o := &order.Order{CustomerID: 1, PlacedAt: time.Now(), PaymentStatus: order.PaymentPending}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		return tx.InsertItems(ctx, []order.Item{{
			OrderID:   o.ID,
			Product:   order.ProductRef{ID: p.ID},
			UnitPrice: p.UnitPrice,
			Quantity:  1,
		}})
	})
	require.NoError(t, err)

	require.ErrorIs(t, s.Catalog().DeleteProduct(ctx, p.ID), catalog.ErrProductReferenced)
}

func TestCatalogRepository_DeleteProductClearsFeatured(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := seedProduct(t, s, "10.00")

	col, err := s.Catalog().GetCollection(ctx, p.CollectionID)
	require.NoError(t, err)
	col.FeaturedProductID = &p.ID
	require.NoError(t, s.Catalog().UpdateCollection(ctx, col))

	require.NoError(t, s.Catalog().DeleteProduct(ctx, p.ID))

	col, err = s.Catalog().GetCollection(ctx, p.CollectionID)
	require.NoError(t, err)
	assert.Nil(t, col.FeaturedProductID)
	assert.Zero(t, col.ProductsCount)
}
