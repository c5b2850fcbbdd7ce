package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/customer"
)

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(c.UserID) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
		e.Field("birth_date", func(e *jx.Encoder) {
			if c.BirthDate == nil {
				e.Null()
				return
			}
			e.Str(c.BirthDate.Format(dateLayout))
		})
		e.Field("membership", func(e *jx.Encoder) { e.Str(string(c.Membership)) })
	})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) error {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		return err
	}
	writeList(w, customers, func(e *jx.Encoder, c customer.Customer) { encodeCustomer(e, &c) })
	return nil
}

// provisionCustomer links a customer to an identity. It is idempotent.
func (h *Handler) provisionCustomer(w http.ResponseWriter, r *http.Request) error {
	var (
		userID string
		seen   = map[string]bool{}
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		if key == "user_id" {
			return decodeString(d, key, &userID)
		}
		return d.Skip()
	})
	if err != nil {
		return err
	}
	if err := required(seen, "user_id"); err != nil {
		return err
	}
	c, err := h.customers.Provision(r.Context(), userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
	return nil
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	c, err := h.customers.Me(r.Context(), p.Subject)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
	return nil
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) error {
	p, err := principal(r)
	if err != nil {
		return err
	}
	var profile customer.Profile
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "phone":
			return decodeString(d, key, &profile.Phone)
		case "membership":
			var m string
			if err := decodeString(d, key, &m); err != nil {
				return err
			}
			profile.Membership = customer.Membership(m)
			return nil
		case "birth_date":
			return decodeDate(d, key, &profile.BirthDate)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	c, err := h.customers.UpdateMe(r.Context(), p.Subject, profile)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
	return nil
}

// decodeDate decodes a nullable YYYY-MM-DD date.
func decodeDate(d *jx.Decoder, field string, dst **time.Time) error {
	if d.Next() == jx.Null {
		*dst = nil
		return invalid(field, d.Null())
	}
	var raw string
	if err := decodeString(d, field, &raw); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return apperr.Validation(field, "date has wrong format, use YYYY-MM-DD")
	}
	*dst = &t
	return nil
}
