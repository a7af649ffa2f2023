package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InventoryRepo moves stock for products and variants. Decrement and Restore
// take the executor so checkout and cancellation can run them inside their
// own transactions.
type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// StockLine identifies what a quantity is drawn from: the variant when set,
// otherwise the product itself.
type StockLine struct {
	ProductID string
	VariantID *string
	Qty       int
}

// InventoryRow is one line of the admin stock report.
type InventoryRow struct {
	ProductID   string  `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	VariantID   *string `db:"variant_id" json:"variant_id"`
	Options     string  `db:"options_json" json:"options"`
	Stock       int     `db:"stock" json:"stock"`
	IsActive    bool    `db:"is_active" json:"is_active"`
}

// ErrInsufficientStock is returned by Decrement when the guarded update
// matched nothing.
type ErrInsufficientStock struct{ Line StockLine }

func (e ErrInsufficientStock) Error() string {
	if e.Line.VariantID != nil {
		return fmt.Sprintf("insufficient stock for %s variant %s (need %d)", e.Line.ProductID, *e.Line.VariantID, e.Line.Qty)
	}
	return fmt.Sprintf("insufficient stock for %s (need %d)", e.Line.ProductID, e.Line.Qty)
}

// Decrement atomically subtracts the quantity if enough stock exists.
func (r *InventoryRepo) Decrement(ctx context.Context, q sqlx.ExtContext, l StockLine) error {
	var query string
	var args []any
	if l.VariantID != nil {
		query = `UPDATE product_variants SET stock = stock - ? WHERE id = ? AND product_id = ? AND stock >= ?`
		args = []any{l.Qty, *l.VariantID, l.ProductID, l.Qty}
	} else {
		query = `UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`
		args = []any{l.Qty, l.ProductID, l.Qty}
	}
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock{Line: l}
	}
	return nil
}

// ErrStockLineGone is returned by Restore when the variant or product the
// quantity came from no longer exists.
type ErrStockLineGone struct{ Line StockLine }

func (e ErrStockLineGone) Error() string {
	if e.Line.VariantID != nil {
		return fmt.Sprintf("cannot restore %d to %s: variant %s is gone", e.Line.Qty, e.Line.ProductID, *e.Line.VariantID)
	}
	return fmt.Sprintf("cannot restore %d to %s: product is gone", e.Line.Qty, e.Line.ProductID)
}

// Restore gives a quantity back, e.g. when an order is cancelled.
func (r *InventoryRepo) Restore(ctx context.Context, q sqlx.ExtContext, l StockLine) error {
	var query string
	var args []any
	if l.VariantID != nil {
		query = `UPDATE product_variants SET stock = stock + ? WHERE id = ? AND product_id = ?`
		args = []any{l.Qty, *l.VariantID, l.ProductID}
	} else {
		query = `UPDATE products SET stock = stock + ? WHERE id = ?`
		args = []any{l.Qty, l.ProductID}
	}
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStockLineGone{Line: l}
	}
	return nil
}
