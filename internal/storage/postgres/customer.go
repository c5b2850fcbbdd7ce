package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/customer"
)

const (
	provisionCustomerSQL = `INSERT INTO customers (user_id) VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING`

	getCustomerByUserSQL = `SELECT id, user_id, phone, birth_date, membership
	FROM customers WHERE user_id = $1`

	listCustomersSQL = `SELECT id, user_id, phone, birth_date, membership
	FROM customers ORDER BY id`

	updateCustomerSQL = `UPDATE customers SET phone = $2, birth_date = $3, membership = $4 WHERE id = $1`
)

// Memberships are stored as single-letter codes.
var membershipCodes = map[customer.Membership]string{
	customer.MembershipBronze: "B",
	customer.MembershipSilver: "S",
	customer.MembershipGold:   "G",
}

func membershipFromCode(code string) customer.Membership {
	for m, c := range membershipCodes {
		if c == code {
			return m
		}
	}
	return customer.MembershipBronze
}

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Provision inserts a bronze customer for userID if none exists and returns
// the stored row. Concurrent calls for the same identity converge on the
// user_id unique constraint.
func (r *CustomerRepository) Provision(ctx context.Context, userID string) (*customer.Customer, error) {
	if _, err := r.pool.Exec(ctx, provisionCustomerSQL, userID); err != nil {
		return nil, errors.Wrapf(err, "provision customer %q", userID)
	}
	return r.GetByUserID(ctx, userID)
}

func (r *CustomerRepository) GetByUserID(ctx context.Context, userID string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByUserSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", userID)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %q", userID)
	}
	return &c, nil
}

func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return pgx.CollectRows(rows, scanCustomer)
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	tag, err := r.pool.Exec(ctx, updateCustomerSQL, c.ID, c.Phone, c.BirthDate, membershipCodes[c.Membership])
	if err != nil {
		return errors.Wrapf(err, "update customer %d", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c    customer.Customer
		code string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Phone, &c.BirthDate, &code)
	c.Membership = membershipFromCode(code)
	return c, err
}
