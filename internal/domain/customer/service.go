package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const maxPhoneLen = 255

// Profile holds the customer fields a customer may edit about themselves.
type Profile struct {
	Phone      string
	BirthDate  *time.Time
	Membership Membership
}

// Service implements customer provisioning and the self-profile.
type Service struct {
	repo Repository
}

// NewService creates a customer Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Provision creates the customer record for a newly created identity. The
// identity-provisioning collaborator calls it explicitly; repeated calls for
// the same identity return the existing record.
func (s *Service) Provision(ctx context.Context, userID string) (*Customer, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id", "this field may not be blank")
	}
	c, err := s.repo.Provision(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "provision customer")
	}
	zctx.From(ctx).Info("Customer provisioned",
		zap.Int64("customer_id", c.ID),
		zap.String("user_id", userID),
	)
	return c, nil
}

// Me returns the customer linked to userID.
func (s *Service) Me(ctx context.Context, userID string) (*Customer, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpdateMe replaces the editable profile of the customer linked to userID.
func (s *Service) UpdateMe(ctx context.Context, userID string, p Profile) (*Customer, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(p.Phone) > maxPhoneLen {
		return nil, apperr.Validation("phone", "ensure this field has no more than 255 characters")
	}
	if p.Membership == "" {
		p.Membership = c.Membership
	}
	if !p.Membership.Valid() {
		return nil, apperr.Validation("membership", "\""+string(p.Membership)+"\" is not a valid choice")
	}
	c.Phone = p.Phone
	c.BirthDate = p.BirthDate
	c.Membership = p.Membership
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update customer")
	}
	return c, nil
}

// List returns every customer.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	customers, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return customers, nil
}
