package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository in memory.
type OrderRepository struct {
	s *Store
}

// InTx runs fn on a private copy of the store; the copy replaces the shared
// state only if fn returns nil. A panic in fn discards the copy.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return r.s.tx(func(st *state) error {
		return fn(ctx, &orderTx{st: st})
	})
}

type orderTx struct {
	st *state
}

func (t *orderTx) LockCart(_ context.Context, cartID uuid.UUID) error {
	// The store-wide write lock held by InTx already serializes placements.
	if _, ok := t.st.carts[cartID]; !ok {
		return order.ErrCartNotFound
	}
	return nil
}

func (t *orderTx) CartLines(_ context.Context, cartID uuid.UUID) ([]order.Line, error) {
	type keyed struct {
		id   int64
		line order.Line
	}
	var rows []keyed
	for k, it := range t.st.cartItems {
		if k.cartID != cartID {
			continue
		}
		p := t.st.products[k.productID]
		rows = append(rows, keyed{it.id, order.Line{
			ProductID:    k.productID,
			ProductTitle: p.title,
			Quantity:     it.quantity,
			UnitPrice:    p.unitPrice,
		}})
	}
	slices.SortFunc(rows, func(a, b keyed) int { return cmp.Compare(a.id, b.id) })
	lines := make([]order.Line, len(rows))
	for i, r := range rows {
		lines[i] = r.line
	}
	return lines, nil
}

func (t *orderTx) CustomerID(_ context.Context, userID string) (int64, error) {
	c, ok := t.st.customerByUser(userID)
	if !ok {
		return 0, order.ErrNoCustomer
	}
	return c.ID, nil
}

func (t *orderTx) InsertOrder(_ context.Context, o *order.Order) error {
	o.ID = t.st.nextID()
	t.st.orders[o.ID] = orderRow{
		customerID: o.CustomerID,
		placedAt:   o.PlacedAt,
		status:     string(o.PaymentStatus),
	}
	return nil
}

func (t *orderTx) InsertItems(_ context.Context, items []order.Item) error {
	for i := range items {
		items[i].ID = t.st.nextID()
		t.st.orderItems[items[i].ID] = orderItemRow{
			orderID:   items[i].OrderID,
			productID: items[i].Product.ID,
			quantity:  items[i].Quantity,
			unitPrice: items[i].UnitPrice,
		}
	}
	return nil
}

func (t *orderTx) DeleteCart(_ context.Context, cartID uuid.UUID) error {
	t.st.deleteCart(cartID)
	return nil
}

func (st *state) order(id int64) (order.Order, bool) {
	row, ok := st.orders[id]
	if !ok {
		return order.Order{}, false
	}
	o := order.Order{
		ID:            id,
		CustomerID:    row.customerID,
		PlacedAt:      row.placedAt,
		PaymentStatus: order.PaymentStatus(row.status),
		Items:         []order.Item{},
	}
	for itemID, it := range st.orderItems {
		if it.orderID != id {
			continue
		}
		p := st.products[it.productID]
		o.Items = append(o.Items, order.Item{
			ID:      itemID,
			OrderID: id,
			Product: order.ProductRef{
				ID:        it.productID,
				Title:     p.title,
				UnitPrice: p.unitPrice,
			},
			UnitPrice: it.unitPrice,
			Quantity:  it.quantity,
		})
	}
	slices.SortFunc(o.Items, func(a, b order.Item) int { return cmp.Compare(a.ID, b.ID) })
	return o, true
}

func (r *OrderRepository) Get(_ context.Context, id int64) (*order.Order, error) {
	var (
		o  order.Order
		ok bool
	)
	r.s.read(func(st *state) { o, ok = st.order(id) })
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (r *OrderRepository) List(_ context.Context, filter order.Filter) ([]order.Order, error) {
	out := []order.Order{}
	r.s.read(func(st *state) {
		for id, row := range st.orders {
			if filter.CustomerID != nil && row.customerID != *filter.CustomerID {
				continue
			}
			o, _ := st.order(id)
			out = append(out, o)
		}
	})
	slices.SortFunc(out, func(a, b order.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id int64, status order.PaymentStatus) error {
	var err error
	r.s.write(func(st *state) {
		row, ok := st.orders[id]
		if !ok {
			err = order.ErrNotFound
			return
		}
		row.status = string(status)
		st.orders[id] = row
	})
	return err
}

func (r *OrderRepository) Delete(_ context.Context, id int64) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.orders[id]; !ok {
			err = order.ErrNotFound
			return
		}
		for _, it := range st.orderItems {
			if it.orderID == id {
				err = order.ErrOrderProtected
				return
			}
		}
		delete(st.orders, id)
	})
	return err
}
