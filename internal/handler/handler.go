// Package handler exposes the storefront over HTTP.
//
// Routes are registered on a net/http ServeMux using method and wildcard
// patterns; bodies are encoded and decoded with jx.
package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// TaxRate is applied to unit prices to compute price_with_tax.
	TaxRate decimal.Decimal
	// OrderThrottle limits order placement per principal. A zero RPS
	// disables it.
	OrderThrottle httpmiddleware.ThrottleConfig
}

// Handler serves the storefront API, delegating to the domain services.
type Handler struct {
	catalog   *catalog.Service
	carts     *cart.Service
	orders    *order.Service
	customers *customer.Service
	security  *SecurityHandler

	taxRate       decimal.Decimal
	orderThrottle httpmiddleware.Middleware
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	catalogSvc *catalog.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	customerSvc *customer.Service,
	security *SecurityHandler,
) *Handler {
	h := &Handler{
		catalog:       catalogSvc,
		carts:         cartSvc,
		orders:        orderSvc,
		customers:     customerSvc,
		security:      security,
		taxRate:       cfg.TaxRate,
		orderThrottle: func(next http.Handler) http.Handler { return next },
	}
	if cfg.OrderThrottle.RPS > 0 {
		t := cfg.OrderThrottle
		if t.KeyFunc == nil {
			t.KeyFunc = principalKey
		}
		h.orderThrottle = httpmiddleware.Throttle(t)
	}
	return h
}

// principalKey throttles authenticated callers by identity and everyone
// else by address.
func principalKey(r *http.Request) string {
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		return "principal:" + p.Subject
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	// Catalog.
	mux.Handle("GET /api/products", h.public(h.listProducts))
	mux.Handle("POST /api/products", h.staff(h.createProduct))
	mux.Handle("GET /api/products/{id}", h.public(h.getProduct))
	mux.Handle("PUT /api/products/{id}", h.staff(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", h.staff(h.deleteProduct))
	mux.Handle("GET /api/products/{id}/reviews", h.public(h.listReviews))
	mux.Handle("POST /api/products/{id}/reviews", h.public(h.createReview))
	mux.Handle("GET /api/collections", h.public(h.listCollections))
	mux.Handle("POST /api/collections", h.staff(h.createCollection))
	mux.Handle("GET /api/collections/{id}", h.public(h.getCollection))
	mux.Handle("PUT /api/collections/{id}", h.staff(h.updateCollection))
	mux.Handle("DELETE /api/collections/{id}", h.staff(h.deleteCollection))
	mux.Handle("GET /api/promotions", h.public(h.listPromotions))
	mux.Handle("POST /api/promotions", h.staff(h.createPromotion))

	// Carts.
	mux.Handle("POST /api/carts", h.public(h.createCart))
	mux.Handle("GET /api/carts/{id}", h.public(h.getCart))
	mux.Handle("DELETE /api/carts/{id}", h.public(h.deleteCart))
	mux.Handle("GET /api/carts/{id}/items", h.public(h.listCartItems))
	mux.Handle("POST /api/carts/{id}/items", h.public(h.addCartItem))
	mux.Handle("GET /api/carts/{id}/items/{product_id}", h.public(h.getCartItem))
	mux.Handle("PATCH /api/carts/{id}/items/{product_id}", h.public(h.updateCartItem))
	mux.Handle("DELETE /api/carts/{id}/items/{product_id}", h.public(h.removeCartItem))

	// Orders.
	mux.Handle("GET /api/orders", h.authenticated(h.listOrders))
	mux.Handle("POST /api/orders", h.authenticated(h.createOrder, h.orderThrottle))
	mux.Handle("GET /api/orders/{id}", h.authenticated(h.getOrder))
	mux.Handle("PATCH /api/orders/{id}", h.staff(h.updateOrder))
	mux.Handle("DELETE /api/orders/{id}", h.staff(h.deleteOrder))

	// Customers.
	mux.Handle("GET /api/customers", h.staff(h.listCustomers))
	mux.Handle("POST /api/customers", h.staff(h.provisionCustomer))
	mux.Handle("GET /api/customers/me", h.authenticated(h.getMe))
	mux.Handle("PUT /api/customers/me", h.authenticated(h.updateMe))
}

// apiFunc is an endpoint. A returned error is written with writeError.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) serve(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

func (h *Handler) public(fn apiFunc) http.Handler {
	return h.serve(fn)
}

// authenticated requires a principal and applies mws after authentication.
func (h *Handler) authenticated(fn apiFunc, mws ...httpmiddleware.Middleware) http.Handler {
	return h.security.Require(false)(httpmiddleware.Wrap(h.serve(fn), mws...))
}

// staff requires a staff principal.
func (h *Handler) staff(fn apiFunc) http.Handler {
	return h.security.Require(true)(h.serve(fn))
}
