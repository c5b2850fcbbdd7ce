package apperr

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCartMissing = NotFound("", "cart not found")

func TestIs(t *testing.T) {
	wrapped := errors.Wrap(WithField(errCartMissing, "cart_id"), "place order")

	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.ErrorIs(t, wrapped, errCartMissing)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.NotErrorIs(t, wrapped, NotFound("", "product not found"))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("quantity", "must be at least 1"), KindValidation},
		{"wrapped conflict", errors.Wrap(Conflict("referenced"), "delete"), KindConflict},
		{"plain error", errors.New("connection reset"), KindFatal},
		{"unauthorized", Unauthorized("missing token"), KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	assert.Equal(t, "cart_id: cart is empty", Validation("cart_id", "cart is empty").Error())
	assert.Equal(t, "conflict", ErrConflict.Error())

	e, ok := As(errors.Wrap(WithField(errCartMissing, "cart_id"), "x"))
	require.True(t, ok)
	assert.Equal(t, "cart_id", e.Field)
	assert.Equal(t, "", errCartMissing.Field, "WithField must not mutate the sentinel")
}
