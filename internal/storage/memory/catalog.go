package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/xenking/storefront/internal/domain/catalog"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository in memory.
type CatalogRepository struct {
	s *Store
}

func (st *state) product(id int64) (catalog.Product, bool) {
	row, ok := st.products[id]
	if !ok {
		return catalog.Product{}, false
	}
	return catalog.Product{
		ID:           id,
		Title:        row.title,
		Slug:         row.slug,
		Description:  row.description,
		UnitPrice:    row.unitPrice,
		Inventory:    row.inventory,
		CollectionID: row.collectionID,
		PromotionIDs: slices.Clone(row.promotionIDs),
		LastUpdate:   row.lastUpdate,
	}, true
}

func productRowOf(p *catalog.Product) productRow {
	return productRow{
		title:        p.Title,
		slug:         p.Slug,
		description:  p.Description,
		unitPrice:    p.UnitPrice,
		inventory:    p.Inventory,
		collectionID: p.CollectionID,
		promotionIDs: slices.Clone(p.PromotionIDs),
		lastUpdate:   p.LastUpdate,
	}
}

func (r *CatalogRepository) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var out []catalog.Product
	r.s.read(func(st *state) {
		for id, row := range st.products {
			if filter.CollectionID != 0 && row.collectionID != filter.CollectionID {
				continue
			}
			p, _ := st.product(id)
			out = append(out, p)
		}
	})
	slices.SortFunc(out, func(a, b catalog.Product) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *CatalogRepository) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	var (
		p  catalog.Product
		ok bool
	)
	r.s.read(func(st *state) { p, ok = st.product(id) })
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (r *CatalogRepository) CreateProduct(_ context.Context, p *catalog.Product) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.collections[p.CollectionID]; !ok {
			err = catalog.ErrCollectionNotFound
			return
		}
		p.ID = st.nextID()
		p.LastUpdate = r.s.now().UTC()
		st.products[p.ID] = productRowOf(p)
	})
	return err
}

func (r *CatalogRepository) UpdateProduct(_ context.Context, p *catalog.Product) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.products[p.ID]; !ok {
			err = catalog.ErrProductNotFound
			return
		}
		if _, ok := st.collections[p.CollectionID]; !ok {
			err = catalog.ErrCollectionNotFound
			return
		}
		p.LastUpdate = r.s.now().UTC()
		st.products[p.ID] = productRowOf(p)
	})
	return err
}

func (r *CatalogRepository) DeleteProduct(_ context.Context, id int64) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.products[id]; !ok {
			err = catalog.ErrProductNotFound
			return
		}
		for _, it := range st.orderItems {
			if it.productID == id {
				err = catalog.ErrProductReferenced
				return
			}
		}
		delete(st.products, id)
		for k := range st.cartItems {
			if k.productID == id {
				delete(st.cartItems, k)
			}
		}
		for rid, rv := range st.reviews {
			if rv.productID == id {
				delete(st.reviews, rid)
			}
		}
		for cid, c := range st.collections {
			if c.featured != nil && *c.featured == id {
				c.featured = nil
				st.collections[cid] = c
			}
		}
	})
	return err
}

func (r *CatalogRepository) CountOrderItems(_ context.Context, productID int64) (int, error) {
	n := 0
	r.s.read(func(st *state) {
		for _, it := range st.orderItems {
			if it.productID == productID {
				n++
			}
		}
	})
	return n, nil
}

func (st *state) collection(id int64) (catalog.Collection, bool) {
	row, ok := st.collections[id]
	if !ok {
		return catalog.Collection{}, false
	}
	c := catalog.Collection{ID: id, Title: row.title}
	if row.featured != nil {
		f := *row.featured
		c.FeaturedProductID = &f
	}
	for _, p := range st.products {
		if p.collectionID == id {
			c.ProductsCount++
		}
	}
	return c, true
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func (r *CatalogRepository) ListCollections(_ context.Context) ([]catalog.Collection, error) {
	var out []catalog.Collection
	r.s.read(func(st *state) {
		for id := range st.collections {
			c, _ := st.collection(id)
			out = append(out, c)
		}
	})
	slices.SortFunc(out, func(a, b catalog.Collection) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *CatalogRepository) GetCollection(_ context.Context, id int64) (*catalog.Collection, error) {
	var (
		c  catalog.Collection
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.collection(id) })
	if !ok {
		return nil, catalog.ErrCollectionNotFound
	}
	return &c, nil
}

func (r *CatalogRepository) CreateCollection(_ context.Context, c *catalog.Collection) error {
	r.s.write(func(st *state) {
		c.ID = st.nextID()
		st.collections[c.ID] = collectionRow{title: c.Title, featured: copyID(c.FeaturedProductID)}
	})
	return nil
}

func (r *CatalogRepository) UpdateCollection(_ context.Context, c *catalog.Collection) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.collections[c.ID]; !ok {
			err = catalog.ErrCollectionNotFound
			return
		}
		st.collections[c.ID] = collectionRow{title: c.Title, featured: copyID(c.FeaturedProductID)}
	})
	return err
}

func (r *CatalogRepository) DeleteCollection(_ context.Context, id int64) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.collections[id]; !ok {
			err = catalog.ErrCollectionNotFound
			return
		}
		for _, p := range st.products {
			if p.collectionID == id {
				err = catalog.ErrCollectionNotEmpty
				return
			}
		}
		delete(st.collections, id)
	})
	return err
}

func (r *CatalogRepository) ListPromotions(_ context.Context) ([]catalog.Promotion, error) {
	var out []catalog.Promotion
	r.s.read(func(st *state) {
		for id, row := range st.promotions {
			out = append(out, catalog.Promotion{ID: id, Description: row.description, Discount: row.discount})
		}
	})
	slices.SortFunc(out, func(a, b catalog.Promotion) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *CatalogRepository) CreatePromotion(_ context.Context, p *catalog.Promotion) error {
	r.s.write(func(st *state) {
		p.ID = st.nextID()
		st.promotions[p.ID] = promotionRow{description: p.Description, discount: p.Discount}
	})
	return nil
}

func (r *CatalogRepository) ListReviews(_ context.Context, productID int64) ([]catalog.Review, error) {
	var out []catalog.Review
	r.s.read(func(st *state) {
		for id, row := range st.reviews {
			if row.productID != productID {
				continue
			}
			out = append(out, catalog.Review{
				ID:          id,
				ProductID:   row.productID,
				Name:        row.name,
				Description: row.description,
				Date:        row.date,
			})
		}
	})
	slices.SortFunc(out, func(a, b catalog.Review) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *CatalogRepository) CreateReview(_ context.Context, rv *catalog.Review) error {
	var err error
	r.s.write(func(st *state) {
		if _, ok := st.products[rv.ProductID]; !ok {
			err = catalog.ErrProductNotFound
			return
		}
		rv.ID = st.nextID()
		rv.Date = r.s.now().UTC().Truncate(24 * time.Hour)
		st.reviews[rv.ID] = reviewRow{
			productID:   rv.ProductID,
			name:        rv.Name,
			description: rv.Description,
			date:        rv.Date,
		}
	})
	return err
}
