package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
)

func encodeCartItem(e *jx.Encoder, it cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("product", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(it.Product.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(it.Product.Title) })
				e.Field("unit_price", func(e *jx.Encoder) { money(e, it.Product.UnitPrice) })
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("total_price", func(e *jx.Encoder) { money(e, it.TotalPrice()) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID.String()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range c.Items {
					encodeCartItem(e, it)
				}
			})
		})
		e.Field("total_price", func(e *jx.Encoder) { money(e, c.TotalPrice()) })
	})
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) error {
	c, err := h.carts.Create(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	c, err := h.carts.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) deleteCart(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	if err := h.carts.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) listCartItems(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	c, err := h.carts.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeList(w, c.Items, encodeCartItem)
	return nil
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	var (
		productID int64
		quantity  int
		seen      = map[string]bool{}
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "product_id":
			return decodeInt64(d, key, &productID)
		case "quantity":
			return decodeInt(d, key, &quantity)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	if err := required(seen, "product_id", "quantity"); err != nil {
		return err
	}
	item, err := h.carts.AddItem(r.Context(), id, productID, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCartItem(e, *item) })
	return nil
}

func (h *Handler) getCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	productID, err := pathInt64(r, "product_id")
	if err != nil {
		return err
	}
	item, err := h.carts.GetItem(r.Context(), id, productID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCartItem(e, *item) })
	return nil
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	productID, err := pathInt64(r, "product_id")
	if err != nil {
		return err
	}
	var (
		quantity int
		seen     = map[string]bool{}
	)
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		if key == "quantity" {
			return decodeInt(d, key, &quantity)
		}
		return d.Skip()
	})
	if err != nil {
		return err
	}
	if err := required(seen, "quantity"); err != nil {
		return err
	}
	item, err := h.carts.UpdateItemQuantity(r.Context(), id, productID, quantity)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCartItem(e, *item) })
	return nil
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	productID, err := pathInt64(r, "product_id")
	if err != nil {
		return err
	}
	if err := h.carts.RemoveItem(r.Context(), id, productID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
