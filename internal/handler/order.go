package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
		e.Field("placed_at", func(e *jx.Encoder) { e.Str(o.PlacedAt.UTC().Format(timeLayout)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeOrderItem(e, it)
				}
			})
		})
		e.Field("total_price", func(e *jx.Encoder) { money(e, o.TotalPrice()) })
	})
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("product", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(it.Product.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(it.Product.Title) })
				e.Field("unit_price", func(e *jx.Encoder) { money(e, it.Product.UnitPrice) })
			})
		})
		e.Field("unit_price", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
	})
}

// principal returns the caller stored by SecurityHandler.Require.
func principal(r *http.Request) (auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return auth.Principal{}, errUnauthorized
	}
	return p, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	orders, err := h.orders.List(r.Context(), p)
	if err != nil {
		return err
	}
	writeList(w, orders, func(e *jx.Encoder, o order.Order) { encodeOrder(e, &o) })
	return nil
}

// createOrder places an order from the cart named in the body. The cart is
// gone once this succeeds.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var (
		rawID string
		seen  = map[string]bool{}
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		if key == "cart_id" {
			return decodeString(d, key, &rawID)
		}
		return d.Skip()
	})
	if err != nil {
		return err
	}
	if err := required(seen, "cart_id"); err != nil {
		return err
	}
	cartID, err := uuid.Parse(rawID)
	if err != nil {
		return apperr.Validation("cart_id", "must be a valid UUID")
	}
	o, err := h.orders.Place(r.Context(), p, cartID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	o, err := h.orders.Get(r.Context(), p, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	var (
		status string
		seen   = map[string]bool{}
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		if key == "payment_status" {
			return decodeString(d, key, &status)
		}
		return d.Skip()
	})
	if err != nil {
		return err
	}
	if err := required(seen, "payment_status"); err != nil {
		return err
	}
	o, err := h.orders.UpdateStatus(r.Context(), id, order.PaymentStatus(status))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	if err := h.orders.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
