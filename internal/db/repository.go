package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/editorhub/editors/internal/models"
)

type txKey struct{}

// Repository provides database access methods. Calls made with a context
// returned inside WithinTx run on that transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// WithinTx runs fn inside a transaction. fn's error rolls everything back.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// first loads one row into dest, reporting false when it does not exist.
func (r *Repository) first(ctx context.Context, dest interface{}, id int64) (bool, error) {
	if err := r.conn(ctx).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// paginate applies a normalized page to a query
func paginate(page models.Page) func(*gorm.DB) *gorm.DB {
	p := page.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(p.Limit).Offset(p.Offset)
	}
}
