package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
)

var _ ports.Transactor = (*Transactor)(nil)

type txKey struct{}

// Transactor runs units of work in a PostgreSQL transaction. The inner
// transactor, when set, covers state that lives outside the database, such
// as simulated custody, and is rolled back together with it.
type Transactor struct {
	db    *gorm.DB
	inner ports.Transactor
}

func NewTransactor(db *gorm.DB, inner ports.Transactor) *Transactor {
	return &Transactor{db: db, inner: inner}
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t == nil || t.db == nil {
		return errors.New("postgres transactor not configured")
	}
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return t.within(ctx, fn)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return t.within(context.WithValue(ctx, txKey{}, tx), fn)
	})
}

func (t *Transactor) within(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.inner == nil {
		return fn(ctx)
	}
	return t.inner.WithinTransaction(ctx, fn)
}

// conn returns the transaction bound to ctx, or db outside of one.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
