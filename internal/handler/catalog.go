package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/catalog"
)

func (h *Handler) encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("slug", func(e *jx.Encoder) { e.Str(p.Slug) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("inventory", func(e *jx.Encoder) { e.Int(p.Inventory) })
		e.Field("unit_price", func(e *jx.Encoder) { money(e, p.UnitPrice) })
		e.Field("price_with_tax", func(e *jx.Encoder) { money(e, p.PriceWithTax(h.taxRate)) })
		e.Field("collection", func(e *jx.Encoder) { e.Int64(p.CollectionID) })
		e.Field("promotions", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range p.PromotionIDs {
					e.Int64(id)
				}
			})
		})
		e.Field("last_update", func(e *jx.Encoder) { e.Str(p.LastUpdate.UTC().Format(timeLayout)) })
	})
}

func encodeCollection(e *jx.Encoder, c catalog.Collection) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(c.Title) })
		e.Field("featured_product", func(e *jx.Encoder) {
			if c.FeaturedProductID == nil {
				e.Null()
				return
			}
			e.Int64(*c.FeaturedProductID)
		})
		e.Field("products_count", func(e *jx.Encoder) { e.Int(c.ProductsCount) })
	})
}

func encodePromotion(e *jx.Encoder, p catalog.Promotion) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("discount", func(e *jx.Encoder) { e.Float64(p.Discount) })
	})
}

func encodeReview(e *jx.Encoder, r catalog.Review) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(r.ID) })
		e.Field("product", func(e *jx.Encoder) { e.Int64(r.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(r.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(r.Description) })
		e.Field("date", func(e *jx.Encoder) { e.Str(r.Date.UTC().Format(dateLayout)) })
	})
}

// decodeProduct fills p from a product body. All fields but slug,
// description and promotions are required.
func decodeProduct(w http.ResponseWriter, r *http.Request, p *catalog.Product) error {
	seen := map[string]bool{}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "title":
			return decodeString(d, key, &p.Title)
		case "slug":
			return decodeString(d, key, &p.Slug)
		case "description":
			return decodeString(d, key, &p.Description)
		case "inventory":
			return decodeInt(d, key, &p.Inventory)
		case "unit_price":
			return decodeDecimal(d, key, &p.UnitPrice)
		case "collection":
			return decodeInt64(d, key, &p.CollectionID)
		case "promotions":
			return decodeInt64s(d, key, &p.PromotionIDs)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	return required(seen, "title", "unit_price", "inventory", "collection")
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	collectionID, err := queryInt64(r, "collection_id")
	if err != nil {
		return err
	}
	products, err := h.catalog.ListProducts(r.Context(), catalog.ProductFilter{CollectionID: collectionID})
	if err != nil {
		return err
	}
	writeList(w, products, h.encodeProduct)
	return nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
	return nil
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) error {
	var p catalog.Product
	if err := decodeProduct(w, r, &p); err != nil {
		return err
	}
	if err := h.catalog.CreateProduct(r.Context(), &p); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, p) })
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	p := catalog.Product{ID: id}
	if err := decodeProduct(w, r, &p); err != nil {
		return err
	}
	if err := h.catalog.UpdateProduct(r.Context(), &p); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	reviews, err := h.catalog.ListReviews(r.Context(), id)
	if err != nil {
		return err
	}
	writeList(w, reviews, encodeReview)
	return nil
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	rv := catalog.Review{ProductID: id}
	err = decodeBody(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			return decodeString(d, key, &rv.Name)
		case "description":
			return decodeString(d, key, &rv.Description)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	if err := h.catalog.CreateReview(r.Context(), &rv); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeReview(e, rv) })
	return nil
}

func decodeCollection(w http.ResponseWriter, r *http.Request, c *catalog.Collection) error {
	seen := map[string]bool{}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "title":
			return decodeString(d, key, &c.Title)
		case "featured_product":
			return decodeOptionalInt64(d, key, &c.FeaturedProductID)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	return required(seen, "title")
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) error {
	collections, err := h.catalog.ListCollections(r.Context())
	if err != nil {
		return err
	}
	writeList(w, collections, encodeCollection)
	return nil
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	c, err := h.catalog.GetCollection(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCollection(e, *c) })
	return nil
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) error {
	var c catalog.Collection
	if err := decodeCollection(w, r, &c); err != nil {
		return err
	}
	if err := h.catalog.CreateCollection(r.Context(), &c); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCollection(e, c) })
	return nil
}

func (h *Handler) updateCollection(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	c := catalog.Collection{ID: id}
	if err := decodeCollection(w, r, &c); err != nil {
		return err
	}
	if err := h.catalog.UpdateCollection(r.Context(), &c); err != nil {
		return err
	}
	updated, err := h.catalog.GetCollection(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCollection(e, *updated) })
	return nil
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) error {
	id, err := pathInt64(r, "id")
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteCollection(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) error {
	promotions, err := h.catalog.ListPromotions(r.Context())
	if err != nil {
		return err
	}
	writeList(w, promotions, encodePromotion)
	return nil
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) error {
	var p catalog.Promotion
	seen := map[string]bool{}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		seen[key] = true
		switch key {
		case "description":
			return decodeString(d, key, &p.Description)
		case "discount":
			return decodeFloat(d, key, &p.Discount)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return err
	}
	if err := required(seen, "description", "discount"); err != nil {
		return err
	}
	if err := h.catalog.CreatePromotion(r.Context(), &p); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePromotion(e, p) })
	return nil
}
