package db

import (
	"context"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

type txKey struct{}

// WithTx stores a transaction in the context so repositories reuse the request's session.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, or nil.
func TxFromContext(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// Conn returns the context's transaction when present and base otherwise, bound to ctx.
func Conn(ctx context.Context, base *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return base.WithContext(ctx)
}

// Transactor runs a unit of work inside a single database transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
}

// GormTransactor implements Transactor on top of a Gorm connection.
type GormTransactor struct {
	db *gorm.DB
}

var _ Transactor = (*GormTransactor)(nil)

// NewTransactor constructs a Gorm-backed Transactor.
func NewTransactor(db *gorm.DB) (*GormTransactor, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	return &GormTransactor{db: db}, nil
}

// Transact begins a transaction, exposes it to fn through the context and commits when fn
// returns nil. Any error or panic rolls the transaction back. When ctx already carries a
// transaction fn joins it instead of opening a new one.
func (t *GormTransactor) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return eris.New("transaction function is required")
	}

	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
