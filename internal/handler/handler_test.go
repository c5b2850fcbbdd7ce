package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/customer"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const (
	staffKey = "staff-key"
	readKey  = "read-key"
)

var pepper = []byte("test-pepper")

type testServer struct {
	srv    *httptest.Server
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, cfg HandlerConfig) *testServer {
	t.Helper()

	store := memory.New()
	ctx := t.Context()
	require.NoError(t, store.APIKeys().Upsert(ctx, auth.APIKeyInfo{
		ID:      "staff",
		KeyHash: auth.HashAPIKey(staffKey, pepper),
		Name:    "staff",
		Scopes:  []string{auth.ScopeAdmin},
	}))
	require.NoError(t, store.APIKeys().Upsert(ctx, auth.APIKeyInfo{
		ID:      "reader",
		KeyHash: auth.HashAPIKey(readKey, pepper),
		Name:    "reader",
	}))

	tokens := auth.NewTokenManager([]byte("secret"), "storefront", time.Hour)
	h := NewHandler(cfg,
		catalog.NewService(store.Catalog()),
		cart.NewService(store.Carts(), store.Catalog()),
		order.NewService(store.Orders(), store.Customers()),
		customer.NewService(store.Customers()),
		NewSecurityHandler(store.APIKeys(), pepper, tokens),
	)
	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, tokens: tokens}
}

func (s *testServer) token(t *testing.T, subject string) string {
	t.Helper()
	token, err := s.tokens.Issue(subject, false)
	require.NoError(t, err)
	return token
}

type credential func(r *http.Request)

func apiKey(key string) credential {
	return func(r *http.Request) { r.Header.Set(apiKeyHeader, key) }
}

func bearer(token string) credential {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (s *testServer) do(t *testing.T, method, path, body string, creds ...credential) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, s.srv.URL+path, rd)
	require.NoError(t, err)
	for _, c := range creds {
		c(req)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

// field returns the top-level key of a JSON object. Strings are unquoted,
// other values are returned raw.
func field(t *testing.T, body []byte, key string) string {
	t.Helper()
	var out string
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, k string) error {
		if k != key {
			return d.Skip()
		}
		if d.Next() == jx.String {
			s, err := d.Str()
			out = s
			return err
		}
		raw, err := d.Raw()
		out = raw.String()
		return err
	})
	require.NoError(t, err, string(body))
	return out
}

func arrayLen(t *testing.T, body []byte) int {
	t.Helper()
	n := 0
	err := jx.DecodeBytes(body).Arr(func(d *jx.Decoder) error {
		n++
		return d.Skip()
	})
	require.NoError(t, err, string(body))
	return n
}

// seedProduct creates a collection and a product priced at price.
func (s *testServer) seedProduct(t *testing.T, price string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/collections", `{"title":"Bakery"}`, apiKey(staffKey))
	require.Equal(t, http.StatusCreated, status, string(body))
	collection := field(t, body, "id")

	status, body = s.do(t, http.MethodPost, "/api/products",
		`{"title":"Rye Bread","unit_price":"`+price+`","inventory":10,"collection":`+collection+`}`,
		apiKey(staffKey))
	require.Equal(t, http.StatusCreated, status, string(body))
	return field(t, body, "id")
}

func (s *testServer) newCart(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/carts", "")
	require.Equal(t, http.StatusCreated, status)
	return field(t, body, "id")
}

func TestHandler_OrderFlow(t *testing.T) {
	s := newTestServer(t, HandlerConfig{TaxRate: decimal.RequireFromString("0.1")})
	productID := s.seedProduct(t, "12.50")

	status, body := s.do(t, http.MethodGet, "/api/products/"+productID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Rye Bread", field(t, body, "title"))
	assert.Equal(t, "rye-bread", field(t, body, "slug"))
	assert.Equal(t, "12.50", field(t, body, "unit_price"))
	assert.Equal(t, "13.75", field(t, body, "price_with_tax"))

	status, body = s.do(t, http.MethodPost, "/api/customers", `{"user_id":"user-1"}`, apiKey(staffKey))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "bronze", field(t, body, "membership"))
	token := s.token(t, "user-1")

	cartID := s.newCart(t)
	for _, qty := range []string{"2", "1"} {
		status, body = s.do(t, http.MethodPost, "/api/carts/"+cartID+"/items",
			`{"product_id":`+productID+`,"quantity":`+qty+`}`)
		require.Equal(t, http.StatusCreated, status, string(body))
	}
	status, body = s.do(t, http.MethodGet, "/api/carts/"+cartID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "37.50", field(t, body, "total_price"))

	status, body = s.do(t, http.MethodPost, "/api/orders", `{"cart_id":"`+cartID+`"}`, bearer(token))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "pending", field(t, body, "payment_status"))
	assert.Equal(t, "37.50", field(t, body, "total_price"))
	orderID := field(t, body, "id")

	status, _ = s.do(t, http.MethodGet, "/api/carts/"+cartID, "")
	assert.Equal(t, http.StatusNotFound, status, "cart must be deleted by placement")

	status, body = s.do(t, http.MethodPost, "/api/orders", `{"cart_id":"`+cartID+`"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "cart_id", field(t, body, "field"))

	status, body = s.do(t, http.MethodGet, "/api/orders", "", bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, arrayLen(t, body))

	status, _ = s.do(t, http.MethodGet, "/api/orders/"+orderID, "", bearer(s.token(t, "user-2")))
	assert.Equal(t, http.StatusNotFound, status)

	status, body = s.do(t, http.MethodPatch, "/api/orders/"+orderID, `{"payment_status":"complete"}`, apiKey(staffKey))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "complete", field(t, body, "payment_status"))

	status, _ = s.do(t, http.MethodDelete, "/api/products/"+productID, "", apiKey(staffKey))
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	status, _ = s.do(t, http.MethodDelete, "/api/orders/"+orderID, "", apiKey(staffKey))
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestHandler_ConcurrentPlacement(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})
	productID := s.seedProduct(t, "5.00")
	status, _ := s.do(t, http.MethodPost, "/api/customers", `{"user_id":"user-1"}`, apiKey(staffKey))
	require.Equal(t, http.StatusOK, status)
	token := s.token(t, "user-1")

	cartID := s.newCart(t)
	status, _ = s.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_id":`+productID+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, status)

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, _ := s.do(t, http.MethodPost, "/api/orders", `{"cart_id":"`+cartID+`"}`, bearer(token))
			mu.Lock()
			codes[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[int]int{http.StatusOK: 1, http.StatusBadRequest: workers - 1}, codes)
}

func TestHandler_Auth(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		creds  []credential
		want   int
	}{
		{"anonymous orders", http.MethodGet, "/api/orders", nil, http.StatusUnauthorized},
		{"unknown api key", http.MethodGet, "/api/orders", []credential{apiKey("nope")}, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/orders", []credential{bearer("nope")}, http.StatusUnauthorized},
		{"customer creates product", http.MethodPost, "/api/products", []credential{bearer(s.token(t, "user-1"))}, http.StatusForbidden},
		{"reader key lists customers", http.MethodGet, "/api/customers", []credential{apiKey(readKey)}, http.StatusForbidden},
		{"staff key lists customers", http.MethodGet, "/api/customers", []credential{apiKey(staffKey)}, http.StatusOK},
		{"public products", http.MethodGet, "/api/products", nil, http.StatusOK},
		{"no customer", http.MethodGet, "/api/customers/me", []credential{bearer(s.token(t, "ghost"))}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, tt.method, tt.path, "", tt.creds...)
			assert.Equal(t, tt.want, status, string(body))
		})
	}
}

func TestHandler_Errors(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})
	productID := s.seedProduct(t, "3.00")
	cartID := s.newCart(t)

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantCode  int
		wantField string
	}{
		{"malformed product id", http.MethodGet, "/api/products/abc", "", http.StatusNotFound, ""},
		{"unknown product", http.MethodGet, "/api/products/9999", "", http.StatusNotFound, ""},
		{"malformed cart id", http.MethodGet, "/api/carts/not-a-uuid", "", http.StatusNotFound, ""},
		{"malformed json", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":`, http.StatusBadRequest, ""},
		{"zero quantity", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":` + productID + `,"quantity":0}`, http.StatusBadRequest, "quantity"},
		{"huge quantity", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":` + productID + `,"quantity":5000000000}`, http.StatusBadRequest, "quantity"},
		{"missing quantity", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":` + productID + `}`, http.StatusBadRequest, "quantity"},
		{"unknown product in body", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":9999,"quantity":1}`, http.StatusBadRequest, "product_id"},
		{"string quantity", http.MethodPost, "/api/carts/" + cartID + "/items", `{"product_id":` + productID + `,"quantity":"x"}`, http.StatusBadRequest, "quantity"},
		{"missing item", http.MethodGet, "/api/carts/" + cartID + "/items/" + productID, "", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantCode, status, string(body))
			assert.Equal(t, strconv.Itoa(tt.wantCode), field(t, body, "code"))
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, field(t, body, "field"))
			}
		})
	}
}

func TestHandler_CartItems(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})
	productID := s.seedProduct(t, "2.25")
	cartID := s.newCart(t)
	itemPath := "/api/carts/" + cartID + "/items/" + productID

	status, _ := s.do(t, http.MethodPost, "/api/carts/"+cartID+"/items", `{"product_id":`+productID+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPatch, itemPath, `{"quantity":4}`)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "4", field(t, body, "quantity"))
	assert.Equal(t, "9.00", field(t, body, "total_price"))

	status, body = s.do(t, http.MethodGet, "/api/carts/"+cartID+"/items", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, arrayLen(t, body))

	status, _ = s.do(t, http.MethodDelete, itemPath, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodDelete, itemPath, "")
	assert.Equal(t, http.StatusNoContent, status, "removal is idempotent")

	status, _ = s.do(t, http.MethodDelete, "/api/carts/"+cartID, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(t, http.MethodDelete, itemPath, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandler_Collections(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})
	productID := s.seedProduct(t, "1.00")

	status, body := s.do(t, http.MethodGet, "/api/collections", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, arrayLen(t, body))

	status, body = s.do(t, http.MethodPost, "/api/collections",
		`{"title":"Featured","featured_product":`+productID+`}`, apiKey(staffKey))
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, productID, field(t, body, "featured_product"))
	assert.Equal(t, "0", field(t, body, "products_count"))
	id := field(t, body, "id")

	status, body = s.do(t, http.MethodPut, "/api/collections/"+id,
		`{"title":"Featured","featured_product":9999}`, apiKey(staffKey))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "featured_product", field(t, body, "field"))

	status, body = s.do(t, http.MethodPut, "/api/collections/"+id,
		`{"title":"Renamed","featured_product":null}`, apiKey(staffKey))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "null", field(t, body, "featured_product"))

	status, _ = s.do(t, http.MethodDelete, "/api/collections/"+id, "", apiKey(staffKey))
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHandler_CustomerProfile(t *testing.T) {
	s := newTestServer(t, HandlerConfig{})
	status, _ := s.do(t, http.MethodPost, "/api/customers", `{"user_id":"user-1"}`, apiKey(staffKey))
	require.Equal(t, http.StatusOK, status)
	token := s.token(t, "user-1")

	status, body := s.do(t, http.MethodPut, "/api/customers/me",
		`{"phone":"555-0100","birth_date":"1990-04-01","membership":"gold"}`, bearer(token))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "1990-04-01", field(t, body, "birth_date"))
	assert.Equal(t, "gold", field(t, body, "membership"))

	status, body = s.do(t, http.MethodPut, "/api/customers/me", `{"birth_date":"01/04/1990"}`, bearer(token))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "birth_date", field(t, body, "field"))
}

func TestHandler_OrderThrottle(t *testing.T) {
	s := newTestServer(t, HandlerConfig{
		OrderThrottle: httpmiddleware.ThrottleConfig{RPS: 0.001, Burst: 1},
	})
	token := s.token(t, "user-1")
	body := `{"cart_id":"00000000-0000-0000-0000-000000000000"}`

	status, _ := s.do(t, http.MethodPost, "/api/orders", body, bearer(token))
	assert.NotEqual(t, http.StatusTooManyRequests, status)
	status, _ = s.do(t, http.MethodPost, "/api/orders", body, bearer(token))
	assert.Equal(t, http.StatusTooManyRequests, status)

	status, _ = s.do(t, http.MethodPost, "/api/orders", body, bearer(s.token(t, "user-2")))
	assert.NotEqual(t, http.StatusTooManyRequests, status, "throttle is per principal")
}
