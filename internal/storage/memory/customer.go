package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/storefront/internal/domain/customer"
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository in memory.
type CustomerRepository struct {
	s *Store
}

func (st *state) customerByUser(userID string) (customer.Customer, bool) {
	for _, c := range st.customers {
		if c.UserID == userID {
			return c, true
		}
	}
	return customer.Customer{}, false
}

func (r *CustomerRepository) Provision(_ context.Context, userID string) (*customer.Customer, error) {
	var c customer.Customer
	r.s.write(func(st *state) {
		var ok bool
		if c, ok = st.customerByUser(userID); ok {
			return
		}
		c = customer.Customer{
			ID:         st.nextID(),
			UserID:     userID,
			Membership: customer.MembershipBronze,
		}
		st.customers[c.ID] = c
	})
	return &c, nil
}

func (r *CustomerRepository) GetByUserID(_ context.Context, userID string) (*customer.Customer, error) {
	var (
		c  customer.Customer
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.customerByUser(userID) })
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (r *CustomerRepository) List(_ context.Context) ([]customer.Customer, error) {
	var out []customer.Customer
	r.s.read(func(st *state) {
		for _, c := range st.customers {
			out = append(out, c)
		}
	})
	slices.SortFunc(out, func(a, b customer.Customer) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *CustomerRepository) Update(_ context.Context, c *customer.Customer) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.customers[c.ID]; !ok {
			err = customer.ErrNotFound
			return
		}
		st.customers[c.ID] = *c
	})
	return err
}
