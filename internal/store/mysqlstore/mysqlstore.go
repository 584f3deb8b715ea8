// Package mysqlstore implements the store contract on MySQL through the
// instrumented internal/db handle.
package mysqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veloshop/storefront/internal/db"
	"github.com/veloshop/storefront/internal/models"
	"github.com/veloshop/storefront/internal/store"
)

// Store runs every query through a db.Runner bound either to the pool or
// to an open transaction
type Store struct {
	db   *db.DB
	r    *db.Runner
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New creates a store on the given database
func New(database *db.DB) *Store {
	return &Store{db: database, r: database.Runner()}
}

// InTx runs fn in a database transaction. Nested calls join the outer one.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithTx(ctx, func(r *db.Runner) error {
		return fn(&Store{db: s.db, r: r, inTx: true})
	})
}

// exec runs a mutation that must touch at least one row
func (s *Store) exec(ctx context.Context, stmt db.Statement) error {
	n, err := s.r.Exec(ctx, stmt)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if db.IsNoRows(err) {
		return store.ErrNotFound
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func now() time.Time {
	return time.Now().UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

var snapshotColumns = []string{
	"p.id", "p.name", "p.price", "p.stock", "p.brand", "p.image_url", "p.category_id", "p.subcategory_id",
}

// joinedProduct receives the LEFT JOINed product columns, which are all
// NULL when the product is gone
type joinedProduct struct {
	id, name                        sql.NullString
	price                           decimal.NullDecimal
	stock                           sql.NullInt64
	brand, imageURL, catID, subcatID sql.NullString
}

func (j *joinedProduct) dest() []any {
	return []any{&j.id, &j.name, &j.price, &j.stock, &j.brand, &j.imageURL, &j.catID, &j.subcatID}
}

func (j *joinedProduct) snapshot() *models.ProductSnapshot {
	if !j.id.Valid {
		return nil
	}
	return &models.ProductSnapshot{
		ID:            j.id.String,
		Name:          j.name.String,
		Price:         j.price.Decimal,
		Stock:         int(j.stock.Int64),
		Brand:         j.brand.String,
		ImageURL:      j.imageURL.String,
		CategoryID:    j.catID.String,
		SubcategoryID: j.subcatID.String,
	}
}
