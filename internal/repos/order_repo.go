package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"beanstore/internal/domain"
)

const orderCols = `id,order_code,customer_id,customer_name,customer_phone,customer_email,pickup_method,
  payment_method,note,total_amount,discount_amount,final_amount,status,created_at,updated_at`

const itemCols = `id,order_id,product_id,variant_id,product_name,unit_price,quantity,grind_option,subtotal`

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// WithTx runs fn in a transaction, committing only if fn returns nil.
func (r *OrderRepo) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *OrderRepo) CodeTaken(ctx context.Context, q sqlx.QueryerContext, code string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, r.db.Rebind(`SELECT COUNT(*) FROM orders WHERE order_code=?`), code)
	return n > 0, err
}

// Insert writes the order header and its items. Item ids must be set.
func (r *OrderRepo) Insert(ctx context.Context, q sqlx.ExtContext, o *domain.Order) error {
	if _, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO orders(`+orderCols+`)
		VALUES(:id,:order_code,:customer_id,:customer_name,:customer_phone,:customer_email,:pickup_method,
		  :payment_method,:note,:total_amount,:discount_amount,:final_amount,:status,:created_at,:updated_at)`, o); err != nil {
		return err
	}
	for i, it := range o.Items {
		if _, err := q.ExecContext(ctx, q.Rebind(`
			INSERT INTO order_items(`+itemCols+`,position)
			VALUES(?,?,?,?,?,?,?,?,?,?)`),
			it.ID, o.ID, it.ProductID, it.VariantID, it.ProductName, it.UnitPrice, it.Quantity, it.GrindOption, it.Subtotal, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) one(ctx context.Context, q sqlx.QueryerContext, where string, args ...any) (domain.Order, error) {
	var o domain.Order
	if err := sqlx.GetContext(ctx, q, &o, r.db.Rebind(`SELECT `+orderCols+` FROM orders WHERE `+where), args...); err != nil {
		return domain.Order{}, err
	}
	items, err := r.items(ctx, q, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *OrderRepo) items(ctx context.Context, q sqlx.QueryerContext, orderID string) ([]domain.OrderItem, error) {
	items := []domain.OrderItem{}
	err := sqlx.SelectContext(ctx, q, &items, r.db.Rebind(`
		SELECT `+itemCols+` FROM order_items
		WHERE order_id=?
		ORDER BY position`), orderID)
	return items, err
}

// Get returns sql.ErrNoRows for unknown ids.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.one(ctx, r.db, `id=?`, id)
}

// GetTx reads an order through q, e.g. inside a status update.
func (r *OrderRepo) GetTx(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Order, error) {
	return r.one(ctx, q, `id=?`, id)
}

func (r *OrderRepo) ByCode(ctx context.Context, code string) (domain.Order, error) {
	return r.one(ctx, r.db, `order_code=?`, code)
}

func (r *OrderRepo) list(ctx context.Context, where string, limit int, args ...any) ([]domain.Order, error) {
	out := []domain.Order{}
	args = append(args, limit)
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+orderCols+` FROM orders
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT ?`), args...); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.items(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, `customer_id=?`, 500, customerID)
}

// List returns the latest orders, optionally narrowed to one status.
func (r *OrderRepo) List(ctx context.Context, status *domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	if status != nil {
		return r.list(ctx, `status=?`, limit, *status)
	}
	return r.list(ctx, `1=1`, limit)
}

// UpdateStatus moves an order from one status to another only if it is still
// in from. It reports false when another writer got there first.
func (r *OrderRepo) UpdateStatus(ctx context.Context, q sqlx.ExtContext, id string, from, to domain.OrderStatus, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE orders SET status=?, updated_at=?
		WHERE id=? AND status=?`), to, now, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RefreshCustomerStats recomputes the order aggregates kept on the customer.
// Cancelled orders do not count.
func (r *OrderRepo) RefreshCustomerStats(ctx context.Context, q sqlx.ExtContext, customerID string, now time.Time) error {
	_, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE customers SET
		  order_count   = (SELECT COUNT(*) FROM orders WHERE customer_id=? AND status<>'cancelled'),
		  total_spent   = (SELECT COALESCE(SUM(final_amount),0) FROM orders WHERE customer_id=? AND status<>'cancelled'),
		  last_order_at = (SELECT MAX(created_at) FROM orders WHERE customer_id=? AND status<>'cancelled'),
		  updated_at    = ?
		WHERE id=?`), customerID, customerID, customerID, now, customerID)
	return err
}
