package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository in memory.
type CartRepository struct {
	s *Store
}

func (st *state) cartItem(cartID uuid.UUID, productID int64) (cart.Item, bool) {
	row, ok := st.cartItems[cartItemKey{cartID, productID}]
	if !ok {
		return cart.Item{}, false
	}
	p := st.products[productID]
	return cart.Item{
		ID:     row.id,
		CartID: cartID,
		Product: cart.ProductRef{
			ID:        productID,
			Title:     p.title,
			UnitPrice: p.unitPrice,
		},
		Quantity: row.quantity,
	}, true
}

func (r *CartRepository) Create(_ context.Context, c *cart.Cart) error {
	r.s.write(func(st *state) { st.carts[c.ID] = c.CreatedAt })
	return nil
}

func (r *CartRepository) Get(_ context.Context, id uuid.UUID) (*cart.Cart, error) {
	var (
		c  *cart.Cart
		ok bool
	)
	r.s.read(func(st *state) {
		var createdAt time.Time
		if createdAt, ok = st.carts[id]; !ok {
			return
		}
		c = &cart.Cart{ID: id, CreatedAt: createdAt, Items: []cart.Item{}}
		for k := range st.cartItems {
			if k.cartID != id {
				continue
			}
			it, _ := st.cartItem(id, k.productID)
			c.Items = append(c.Items, it)
		}
	})
	if !ok {
		return nil, cart.ErrNotFound
	}
	slices.SortFunc(c.Items, func(a, b cart.Item) int { return cmp.Compare(a.ID, b.ID) })
	return c, nil
}

func (r *CartRepository) Delete(_ context.Context, id uuid.UUID) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.carts[id]; !ok {
			err = cart.ErrNotFound
			return
		}
		st.deleteCart(id)
	})
	return err
}

func (st *state) deleteCart(id uuid.UUID) {
	delete(st.carts, id)
	for k := range st.cartItems {
		if k.cartID == id {
			delete(st.cartItems, k)
		}
	}
}

func (r *CartRepository) AddItem(_ context.Context, cartID uuid.UUID, productID int64, quantity int) (*cart.Item, error) {
	var (
		it  cart.Item
		err error
	)
	r.s.write(func(st *state) {
		if _, ok := st.carts[cartID]; !ok {
			err = cart.ErrNotFound
			return
		}
		if _, ok := st.products[productID]; !ok {
			err = catalog.ErrProductNotFound
			return
		}
		key := cartItemKey{cartID, productID}
		row, ok := st.cartItems[key]
		if ok {
			if row.quantity+quantity > cart.MaxQuantity {
				err = cart.ErrQuantityTooLarge
				return
			}
			row.quantity += quantity
		} else {
			row = cartItemRow{id: st.nextID(), quantity: quantity}
		}
		st.cartItems[key] = row
		it, _ = st.cartItem(cartID, productID)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *CartRepository) GetItem(_ context.Context, cartID uuid.UUID, productID int64) (*cart.Item, error) {
	var (
		it cart.Item
		ok bool
	)
	r.s.read(func(st *state) { it, ok = st.cartItem(cartID, productID) })
	if !ok {
		return nil, cart.ErrItemNotFound
	}
	return &it, nil
}

func (r *CartRepository) SetItemQuantity(_ context.Context, cartID uuid.UUID, productID int64, quantity int) (*cart.Item, error) {
	var (
		it  cart.Item
		err error
	)
	r.s.write(func(st *state) {
		key := cartItemKey{cartID, productID}
		row, ok := st.cartItems[key]
		if !ok {
			err = cart.ErrItemNotFound
			return
		}
		row.quantity = quantity
		st.cartItems[key] = row
		it, _ = st.cartItem(cartID, productID)
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *CartRepository) RemoveItem(_ context.Context, cartID uuid.UUID, productID int64) (bool, error) {
	var removed bool
	r.s.write(func(st *state) {
		key := cartItemKey{cartID, productID}
		if _, removed = st.cartItems[key]; removed {
			delete(st.cartItems, key)
		}
	})
	return removed, nil
}
