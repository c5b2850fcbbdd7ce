package customer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/storage/memory"
)

func TestService_Provision(t *testing.T) {
	ctx := context.Background()
	svc := customer.NewService(memory.New().Customers())

	c, err := svc.Provision(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, customer.MembershipBronze, c.Membership)
	assert.Equal(t, "user-1", c.UserID)

	again, err := svc.Provision(ctx, " user-1 ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	_, err = svc.Provision(ctx, "  ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_UpdateMe(t *testing.T) {
	ctx := context.Background()
	svc := customer.NewService(memory.New().Customers())
	_, err := svc.Provision(ctx, "user-1")
	require.NoError(t, err)

	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	c, err := svc.UpdateMe(ctx, "user-1", customer.Profile{Phone: "+1 555 0100", BirthDate: &birth})
	require.NoError(t, err)
	assert.Equal(t, "+1 555 0100", c.Phone)
	assert.Equal(t, customer.MembershipBronze, c.Membership)

	c, err = svc.UpdateMe(ctx, "user-1", customer.Profile{Membership: customer.MembershipGold})
	require.NoError(t, err)
	assert.Equal(t, customer.MembershipGold, c.Membership)

	me, err := svc.Me(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, customer.MembershipGold, me.Membership)

	_, err = svc.UpdateMe(ctx, "user-1", customer.Profile{Membership: "platinum"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateMe(ctx, "nobody", customer.Profile{})
	require.ErrorIs(t, err, customer.ErrNotFound)
}
