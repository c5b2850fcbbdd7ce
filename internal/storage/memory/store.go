// Package memory is an in-process implementation of every repository, used
// for local development and tests. All state lives behind one mutex;
// transactions run on a copy of the state that replaces it on commit.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/customer"
)

type cartItemKey struct {
	cartID    uuid.UUID
	productID int64
}

type cartItemRow struct {
	id       int64
	quantity int
}

type orderRow struct {
	customerID int64
	placedAt   time.Time
	status     string
}

type orderItemRow struct {
	orderID   int64
	productID int64
	quantity  int
	unitPrice decimal.Decimal
}

type productRow struct {
	title        string
	slug         string
	description  string
	unitPrice    decimal.Decimal
	inventory    int
	collectionID int64
	promotionIDs []int64
	lastUpdate   time.Time
}

type collectionRow struct {
	title    string
	featured *int64
}

type promotionRow struct {
	description string
	discount    float64
}

type reviewRow struct {
	productID   int64
	name        string
	description string
	date        time.Time
}

type state struct {
	seq         int64
	collections map[int64]collectionRow
	products    map[int64]productRow
	promotions  map[int64]promotionRow
	reviews     map[int64]reviewRow
	carts       map[uuid.UUID]time.Time
	cartItems   map[cartItemKey]cartItemRow
	customers   map[int64]customer.Customer
	orders      map[int64]orderRow
	orderItems  map[int64]orderItemRow
	apiKeys     map[string]auth.APIKeyInfo
}

func newState() *state {
	return &state{
		collections: make(map[int64]collectionRow),
		products:    make(map[int64]productRow),
		promotions:  make(map[int64]promotionRow),
		reviews:     make(map[int64]reviewRow),
		carts:       make(map[uuid.UUID]time.Time),
		cartItems:   make(map[cartItemKey]cartItemRow),
		customers:   make(map[int64]customer.Customer),
		orders:      make(map[int64]orderRow),
		orderItems:  make(map[int64]orderItemRow),
		apiKeys:     make(map[string]auth.APIKeyInfo),
	}
}

// clone copies every table. Rows are values, so a shallow map copy is
// enough except for slices held by rows, which are never mutated in place.
func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		collections: maps.Clone(s.collections),
		products:    maps.Clone(s.products),
		promotions:  maps.Clone(s.promotions),
		reviews:     maps.Clone(s.reviews),
		carts:       maps.Clone(s.carts),
		cartItems:   maps.Clone(s.cartItems),
		customers:   maps.Clone(s.customers),
		orders:      maps.Clone(s.orders),
		orderItems:  maps.Clone(s.orderItems),
		apiKeys:     maps.Clone(s.apiKeys),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store owns the in-memory state. Use its accessors to obtain repositories.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *Store) write(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// tx runs fn against a copy of the state and publishes the copy only when fn
// succeeds. Writers are serialized, so a transaction never observes another
// transaction's partial writes.
func (s *Store) tx(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Ping always succeeds; it lets the store back a readiness check.
func (s *Store) Ping(context.Context) error { return nil }

// Catalog returns the catalog repository view.
func (s *Store) Catalog() *CatalogRepository { return &CatalogRepository{s: s} }

// Carts returns the cart repository view.
func (s *Store) Carts() *CartRepository { return &CartRepository{s: s} }

// Customers returns the customer repository view.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s: s} }

// Orders returns the order repository view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// APIKeys returns the API key repository view.
func (s *Store) APIKeys() *APIKeyRepository { return &APIKeyRepository{s: s} }
