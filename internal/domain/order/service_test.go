package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage/memory"
)

// --- Fault injection ---

// faultyRepo wraps a repository and fails InsertItems inside the transaction.
type faultyRepo struct {
	*memory.OrderRepository
	err error
}

func (r *faultyRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return r.OrderRepository.InTx(ctx, func(ctx context.Context, tx order.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, err: r.err})
	})
}

type faultyTx struct {
	order.Tx
	err error
}

func (t *faultyTx) InsertItems(context.Context, []order.Item) error {
	return t.err
}

// --- Helpers ---

type fixture struct {
	store    *memory.Store
	svc      *order.Service
	products []catalog.Product
	user     auth.Principal
}

func newFixture(t *testing.T, prices ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	col := &catalog.Collection{Title: "Pantry"}
	require.NoError(t, store.Catalog().CreateCollection(ctx, col))

	f := &fixture{
		store: store,
		svc:   order.NewService(store.Orders(), store.Customers()),
		user:  auth.Principal{Subject: "user-1"},
	}
	for i, price := range prices {
		p := catalog.Product{
			Title:        "Product " + string(rune('A'+i)),
			Slug:         "product",
			UnitPrice:    decimal.RequireFromString(price),
			Inventory:    100,
			CollectionID: col.ID,
		}
		require.NoError(t, store.Catalog().CreateProduct(ctx, &p))
		f.products = append(f.products, p)
	}
	_, err := store.Customers().Provision(ctx, f.user.Subject)
	require.NoError(t, err)
	return f
}

func (f *fixture) cart(t *testing.T, quantities ...int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, f.store.Carts().Create(ctx, &cart.Cart{ID: id, CreatedAt: time.Now()}))
	for i, q := range quantities {
		_, err := f.store.Carts().AddItem(ctx, id, f.products[i].ID, q)
		require.NoError(t, err)
	}
	return id
}

// --- Tests ---

func TestService_Place(t *testing.T) {
	f := newFixture(t, "10.00", "2.50", "7.25")
	cartID := f.cart(t, 1, 4, 2)

	o, err := f.svc.Place(context.Background(), f.user, cartID)
	require.NoError(t, err)

	require.Len(t, o.Items, 3)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.NotZero(t, o.ID)
	assert.Equal(t, "34.50", o.TotalPrice().StringFixed(2))
	for i, it := range o.Items {
		assert.Equal(t, f.products[i].ID, it.Product.ID)
		assert.True(t, f.products[i].UnitPrice.Equal(it.UnitPrice))
	}

	_, err = f.store.Carts().Get(context.Background(), cartID)
	require.Error(t, err, "cart must be deleted after placement")

	stored, err := f.svc.Get(context.Background(), f.user, o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 3)
}

func TestService_Place_MergedItems(t *testing.T) {
	f := newFixture(t, "10.00")
	cartID := f.cart(t, 2)
	_, err := f.store.Carts().AddItem(context.Background(), cartID, f.products[0].ID, 3)
	require.NoError(t, err)

	o, err := f.svc.Place(context.Background(), f.user, cartID)
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, "50.00", o.TotalPrice().StringFixed(2))
}

func TestService_Place_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, f *fixture) (auth.Principal, uuid.UUID)
		wantErr error
		kind    apperr.Kind
	}{
		{
			name: "empty cart",
			setup: func(t *testing.T, f *fixture) (auth.Principal, uuid.UUID) {
				return f.user, f.cart(t)
			},
			wantErr: order.ErrEmptyCart,
			kind:    apperr.KindValidation,
		},
		{
			name: "missing cart",
			setup: func(*testing.T, *fixture) (auth.Principal, uuid.UUID) {
				return auth.Principal{Subject: "user-1"}, uuid.New()
			},
			wantErr: order.ErrCartNotFound,
			kind:    apperr.KindNotFound,
		},
		{
			name: "anonymous",
			setup: func(t *testing.T, f *fixture) (auth.Principal, uuid.UUID) {
				return auth.Principal{}, f.cart(t, 1)
			},
			wantErr: apperr.ErrUnauthorized,
			kind:    apperr.KindUnauthorized,
		},
		{
			name: "no customer",
			setup: func(t *testing.T, f *fixture) (auth.Principal, uuid.UUID) {
				return auth.Principal{Subject: "stranger"}, f.cart(t, 1)
			},
			wantErr: order.ErrNoCustomer,
			kind:    apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "1.00")
			p, cartID := tt.setup(t, f)

			o, err := f.svc.Place(context.Background(), p, cartID)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)
			assert.Equal(t, tt.kind, apperr.KindOf(err))

			orders, err := f.store.Orders().List(context.Background(), order.Filter{})
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestService_Place_EmptyCartIsKept(t *testing.T) {
	f := newFixture(t)
	cartID := f.cart(t)

	_, err := f.svc.Place(context.Background(), f.user, cartID)
	require.ErrorIs(t, err, order.ErrEmptyCart)

	_, err = f.store.Carts().Get(context.Background(), cartID)
	require.NoError(t, err)
}

func TestService_Place_PriceSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "10.00")
	cartID := f.cart(t, 3)

	o, err := f.svc.Place(ctx, f.user, cartID)
	require.NoError(t, err)

	p := f.products[0]
	p.UnitPrice = decimal.RequireFromString("99.99")
	require.NoError(t, f.store.Catalog().UpdateProduct(ctx, &p))

	stored, err := f.svc.Get(ctx, f.user, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "10.00", stored.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "99.99", stored.Items[0].Product.UnitPrice.StringFixed(2))
	assert.Equal(t, "30.00", stored.TotalPrice().StringFixed(2))
}

func TestService_Place_RollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "10.00", "5.00")
	cartID := f.cart(t, 1, 1)

	boom := errors.New("connection reset")
	svc := order.NewService(&faultyRepo{OrderRepository: f.store.Orders(), err: boom}, f.store.Customers())

	_, err := svc.Place(ctx, f.user, cartID)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, apperr.KindFatal, apperr.KindOf(err))

	orders, err := f.store.Orders().List(ctx, order.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	c, err := f.store.Carts().Get(ctx, cartID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

func TestService_Place_Concurrent(t *testing.T) {
	const workers = 16

	f := newFixture(t, "10.00")
	cartID := f.cart(t, 2)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		notFound int
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Place(context.Background(), f.user, cartID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, order.ErrCartNotFound):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, workers-1, notFound)

	orders, err := f.store.Orders().List(context.Background(), order.Filter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 1)
}

func TestService_Get_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1.00")
	o, err := f.svc.Place(ctx, f.user, f.cart(t, 1))
	require.NoError(t, err)

	_, err = f.store.Customers().Provision(ctx, "user-2")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, auth.Principal{Subject: "user-2"}, o.ID)
	require.ErrorIs(t, err, order.ErrNotFound)

	got, err := f.svc.Get(ctx, auth.Principal{Subject: "admin", Staff: true}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1.00")
	_, err := f.svc.Place(ctx, f.user, f.cart(t, 1))
	require.NoError(t, err)

	other := auth.Principal{Subject: "user-2"}
	_, err = f.store.Customers().Provision(ctx, other.Subject)
	require.NoError(t, err)
	_, err = f.svc.Place(ctx, other, f.cart(t, 1))
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := f.svc.List(ctx, auth.Principal{Subject: "admin", Staff: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.svc.List(ctx, auth.Principal{Subject: "ghost"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1.00")
	o, err := f.svc.Place(ctx, f.user, f.cart(t, 1))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "refunded")
	require.ErrorIs(t, err, order.ErrInvalidStatus)

	updated, err := f.svc.UpdateStatus(ctx, o.ID, order.PaymentComplete)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentComplete, updated.PaymentStatus)
	assert.True(t, o.PlacedAt.Equal(updated.PlacedAt))

	_, err = f.svc.UpdateStatus(ctx, o.ID+1000, order.PaymentFailed)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestService_Delete_Protected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "1.00")
	o, err := f.svc.Place(ctx, f.user, f.cart(t, 1))
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, o.ID), order.ErrOrderProtected)
	require.ErrorIs(t, f.svc.Delete(ctx, o.ID+1000), order.ErrNotFound)
}
