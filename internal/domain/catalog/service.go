package catalog

import (
	"context"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Service implements catalog reads and the admin write path.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListProducts returns products matching filter ordered by title.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return products, nil
}

// GetProduct returns a product or ErrProductNotFound.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct validates p and stores it, filling in ID and LastUpdate.
func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if err := s.validateProduct(ctx, p); err != nil {
		return err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return errors.Wrap(err, "create product")
	}
	zctx.From(ctx).Info("Product created", zap.Int64("product_id", p.ID))
	return nil
}

// UpdateProduct validates p and replaces the stored product with the same ID.
func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	if _, err := s.repo.GetProduct(ctx, p.ID); err != nil {
		return err
	}
	if err := s.validateProduct(ctx, p); err != nil {
		return err
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return errors.Wrap(err, "update product")
	}
	return nil
}

// DeleteProduct removes a product unless any order item references it.
// Cart items holding the product are removed along with it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountOrderItems(ctx, id)
	if err != nil {
		return errors.Wrap(err, "count order items")
	}
	if n > 0 {
		return ErrProductReferenced
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	zctx.From(ctx).Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *Service) validateProduct(ctx context.Context, p *Product) error {
	p.Title = strings.TrimSpace(p.Title)
	switch {
	case p.Title == "":
		return apperr.Validation("title", "this field may not be blank")
	case len(p.Title) > maxTitleLen:
		return apperr.Validation("title", "ensure this field has no more than 255 characters")
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if err := validateUnitPrice(p.UnitPrice); err != nil {
		return err
	}
	if p.Inventory < MinInventory || p.Inventory > MaxInventory {
		return apperr.Validation("inventory", "value must be between 1 and 1000")
	}
	if p.CollectionID == 0 {
		return apperr.Validation("collection", "this field is required")
	}
	if _, err := s.repo.GetCollection(ctx, p.CollectionID); err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return apperr.WithField(ErrCollectionNotFound, "collection")
		}
		return errors.Wrap(err, "get collection")
	}
	return s.validatePromotions(ctx, p)
}

// validatePromotions drops repeated promotion ids, keeping the first
// occurrence, and rejects ids that name no promotion.
func (s *Service) validatePromotions(ctx context.Context, p *Product) error {
	if len(p.PromotionIDs) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(p.PromotionIDs))
	ids := p.PromotionIDs[:0:0]
	for _, id := range p.PromotionIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	p.PromotionIDs = ids

	promotions, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return errors.Wrap(err, "list promotions")
	}
	known := make(map[int64]struct{}, len(promotions))
	for _, pr := range promotions {
		known[pr.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return ErrPromotionNotFound
		}
	}
	return nil
}

func validateUnitPrice(price decimal.Decimal) error {
	switch {
	case !price.IsPositive():
		return apperr.Validation("unit_price", "ensure this value is greater than 0")
	case price.GreaterThan(MaxUnitPrice):
		return apperr.Validation("unit_price", "ensure there are no more than 6 digits in total")
	case !price.Equal(price.Round(2)):
		return apperr.Validation("unit_price", "ensure there are no more than 2 decimal places")
	}
	return nil
}

// Slugify lowercases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// ListCollections returns all collections with their product counts.
func (s *Service) ListCollections(ctx context.Context) ([]Collection, error) {
	collections, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return collections, nil
}

// GetCollection returns a collection or ErrCollectionNotFound.
func (s *Service) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	return s.repo.GetCollection(ctx, id)
}

// CreateCollection validates and stores c.
func (s *Service) CreateCollection(ctx context.Context, c *Collection) error {
	if err := s.validateCollection(ctx, c); err != nil {
		return err
	}
	if err := s.repo.CreateCollection(ctx, c); err != nil {
		return errors.Wrap(err, "create collection")
	}
	return nil
}

// UpdateCollection validates c and replaces the stored collection.
func (s *Service) UpdateCollection(ctx context.Context, c *Collection) error {
	if _, err := s.repo.GetCollection(ctx, c.ID); err != nil {
		return err
	}
	if err := s.validateCollection(ctx, c); err != nil {
		return err
	}
	if err := s.repo.UpdateCollection(ctx, c); err != nil {
		return errors.Wrap(err, "update collection")
	}
	return nil
}

// DeleteCollection removes an empty collection.
func (s *Service) DeleteCollection(ctx context.Context, id int64) error {
	c, err := s.repo.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if c.ProductsCount > 0 {
		return ErrCollectionNotEmpty
	}
	return s.repo.DeleteCollection(ctx, id)
}

func (s *Service) validateCollection(ctx context.Context, c *Collection) error {
	c.Title = strings.TrimSpace(c.Title)
	switch {
	case c.Title == "":
		return apperr.Validation("title", "this field may not be blank")
	case len(c.Title) > maxTitleLen:
		return apperr.Validation("title", "ensure this field has no more than 255 characters")
	}
	if c.FeaturedProductID != nil {
		if _, err := s.repo.GetProduct(ctx, *c.FeaturedProductID); err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return apperr.WithField(ErrProductNotFound, "featured_product")
			}
			return errors.Wrap(err, "get featured product")
		}
	}
	return nil
}

// ListPromotions returns all promotions.
func (s *Service) ListPromotions(ctx context.Context) ([]Promotion, error) {
	promotions, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return promotions, nil
}

// CreatePromotion validates and stores p.
func (s *Service) CreatePromotion(ctx context.Context, p *Promotion) error {
	p.Description = strings.TrimSpace(p.Description)
	if p.Description == "" {
		return apperr.Validation("description", "this field may not be blank")
	}
	if p.Discount < 0 {
		return apperr.Validation("discount", "ensure this value is greater than or equal to 0")
	}
	if err := s.repo.CreatePromotion(ctx, p); err != nil {
		return errors.Wrap(err, "create promotion")
	}
	return nil
}

// ListReviews returns the reviews of an existing product.
func (s *Service) ListReviews(ctx context.Context, productID int64) ([]Review, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	return reviews, nil
}

// CreateReview attaches r to its product.
func (s *Service) CreateReview(ctx context.Context, r *Review) error {
	if _, err := s.repo.GetProduct(ctx, r.ProductID); err != nil {
		return err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return apperr.Validation("name", "this field may not be blank")
	}
	if len(r.Name) > maxTitleLen {
		return apperr.Validation("name", "ensure this field has no more than 255 characters")
	}
	if strings.TrimSpace(r.Description) == "" {
		return apperr.Validation("description", "this field may not be blank")
	}
	if err := s.repo.CreateReview(ctx, r); err != nil {
		return errors.Wrap(err, "create review")
	}
	return nil
}
