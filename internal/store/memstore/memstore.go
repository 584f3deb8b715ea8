// Package memstore is an in-memory implementation of the store contract for
// local runs and tests. It mirrors the MySQL store's semantics, including
// the unique keys and the "no rows" condition.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

type dataset struct {
	products   map[string]models.Product
	categories map[string]models.Category
	cartLines  map[string]models.CartLine
	orders     map[string]models.Order
	orderLines map[string][]models.OrderLine
	users      map[string]models.UserProfile
}

func newDataset() *dataset {
	return &dataset{
		products:   make(map[string]models.Product),
		categories: make(map[string]models.Category),
		cartLines:  make(map[string]models.CartLine),
		orders:     make(map[string]models.Order),
		orderLines: make(map[string][]models.OrderLine),
		users:      make(map[string]models.UserProfile),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.cartLines {
		c.cartLines[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.orderLines {
		c.orderLines[k] = slices.Clone(v)
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

type state struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *dataset
	last time.Time

	failures map[string]error
	calls    map[string]int
}

// Store is safe for concurrent use. Transactions are serialized.
type Store struct {
	*state
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: &state{
		data:     newDataset(),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}}
}

// InTx snapshots the data, runs fn and restores the snapshot if fn fails.
// Writes made outside the transaction while it runs are lost on rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(&Store{state: s.state, inTx: true}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the next call of the named method return err
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Calls returns how often the named method was called
func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of store calls of any kind
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// enter must be called with mu held
func (s *Store) enter(ctx context.Context, method string) error {
	s.calls[method]++
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return ctx.Err()
}

// tick returns a strictly increasing timestamp so "newest first" is stable
func (s *Store) tick() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
