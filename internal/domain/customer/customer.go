// Package customer maps authenticated identities to commerce profiles.
package customer

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Membership is a customer's loyalty tier.
type Membership string

const (
	MembershipBronze Membership = "bronze"
	MembershipSilver Membership = "silver"
	MembershipGold   Membership = "gold"
)

// Valid reports whether m is a known tier.
func (m Membership) Valid() bool {
	switch m {
	case MembershipBronze, MembershipSilver, MembershipGold:
		return true
	}
	return false
}

// ErrNotFound is returned when no customer is linked to an identity.
var ErrNotFound = apperr.NotFound("", "customer not found")

// Customer is linked one-to-one with an identity (UserID).
type Customer struct {
	ID         int64
	UserID     string
	Phone      string
	BirthDate  *time.Time
	Membership Membership
}

// Repository persists customers.
type Repository interface {
	// Provision inserts a bronze customer for userID unless one exists, and
	// returns the stored record either way.
	Provision(ctx context.Context, userID string) (*Customer, error)
	GetByUserID(ctx context.Context, userID string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Update(ctx context.Context, c *Customer) error
}
