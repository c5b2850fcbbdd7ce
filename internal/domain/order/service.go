package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/customer"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider used for placement spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service encapsulates order placement and order management.
type Service struct {
	orders    Repository
	customers customer.Repository
	now       func() time.Time

	tracer trace.Tracer
	meter  metric.Meter
	placed metric.Int64Counter
	failed metric.Int64Counter
}

// NewService creates an order Service.
func NewService(orders Repository, customers customer.Repository, opts ...Option) *Service {
	s := &Service{
		orders:    orders,
		customers: customers,
		now:       time.Now,
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
		meter:     otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders created from carts"),
	); err != nil {
		s.placed = noop.Int64Counter{}
	}
	if s.failed, err = s.meter.Int64Counter("shop.orders.failed",
		metric.WithDescription("Order placements rejected or rolled back"),
	); err != nil {
		s.failed = noop.Int64Counter{}
	}
	return s
}

// Place converts the cart into an order owned by the caller's customer.
//
// Everything happens in one transaction: the cart row is locked, its lines are
// read together with current product prices (the price snapshot), the order
// and all of its items are written, and the cart is deleted. Any failure rolls
// back the whole sequence. Concurrent placements of the same cart serialize on
// the cart lock; all but the first fail with ErrCartNotFound.
func (s *Service) Place(ctx context.Context, p auth.Principal, cartID uuid.UUID) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place",
		trace.WithAttributes(attribute.String("cart.id", cartID.String())),
	)
	defer span.End()

	if p.Subject == "" {
		return nil, apperr.Unauthorized("authentication credentials were not provided")
	}

	var placed *Order
	err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockCart(ctx, cartID); err != nil {
			return err
		}
		lines, err := tx.CartLines(ctx, cartID)
		if err != nil {
			return errors.Wrap(err, "load cart lines")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		customerID, err := tx.CustomerID(ctx, p.Subject)
		if err != nil {
			return err
		}

		o := &Order{
			CustomerID:    customerID,
			PlacedAt:      s.now().UTC(),
			PaymentStatus: PaymentPending,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}

		items := make([]Item, len(lines))
		for i, l := range lines {
			items[i] = Item{
				OrderID: o.ID,
				Product: ProductRef{
					ID:        l.ProductID,
					Title:     l.ProductTitle,
					UnitPrice: l.UnitPrice,
				},
				UnitPrice: l.UnitPrice,
				Quantity:  l.Quantity,
			}
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return errors.Wrap(err, "insert order items")
		}
		if err := tx.DeleteCart(ctx, cartID); err != nil {
			return errors.Wrap(err, "delete cart")
		}

		o.Items = items
		placed = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order")
		s.failed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", apperr.KindOf(err).String()),
		))
		if apperr.KindOf(err) == apperr.KindFatal {
			zctx.From(ctx).Error("Order placement failed",
				zap.Stringer("cart_id", cartID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", placed.ID),
		zap.Int64("customer_id", placed.CustomerID),
		zap.Stringer("cart_id", cartID),
		zap.Int("items", len(placed.Items)),
	)
	return placed, nil
}

// Get returns an order. Non-staff callers only see their own orders; other
// orders are reported as not found.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Staff {
		return o, nil
	}
	c, err := s.customers.GetByUserID(ctx, p.Subject)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get customer")
	}
	if o.CustomerID != c.ID {
		return nil, ErrNotFound
	}
	return o, nil
}

// List returns every order for staff and the caller's own orders otherwise.
// An identity without a customer has no orders.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]Order, error) {
	var filter Filter
	if !p.Staff {
		c, err := s.customers.GetByUserID(ctx, p.Subject)
		if err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return []Order{}, nil
			}
			return nil, errors.Wrap(err, "get customer")
		}
		filter.CustomerID = &c.ID
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateStatus sets the payment status of an order.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status PaymentStatus) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order payment status updated",
		zap.Int64("order_id", id),
		zap.String("payment_status", string(status)),
	)
	return s.orders.Get(ctx, id)
}

// Delete removes an order. Orders with items are protected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(o.Items) > 0 {
		return ErrOrderProtected
	}
	return s.orders.Delete(ctx, id)
}
