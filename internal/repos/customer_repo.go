package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"beanstore/internal/domain"
)

const customerCols = `id,name,phone,email,password_hash,auth_provider,google_id,email_verified,role,
  last_login_at,order_count,total_spent,last_order_at,created_at,updated_at`

type CustomerRepo struct{ db *sqlx.DB }

func NewCustomerRepo(db *sqlx.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO customers(`+customerCols+`)
		VALUES(:id,:name,:phone,:email,:password_hash,:auth_provider,:google_id,:email_verified,:role,
		  :last_login_at,:order_count,:total_spent,:last_order_at,:created_at,:updated_at)`, c)
	return err
}

func (r *CustomerRepo) get(ctx context.Context, where string, arg any) (*domain.Customer, error) {
	var c domain.Customer
	if err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+customerCols+` FROM customers WHERE `+where), arg); err != nil {
		return nil, err
	}
	return &c, nil
}

// ByID returns sql.ErrNoRows when the customer does not exist.
func (r *CustomerRepo) ByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.get(ctx, `id=?`, id)
}

func (r *CustomerRepo) ByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.get(ctx, `LOWER(email)=LOWER(?)`, email)
}

func (r *CustomerRepo) ByGoogleID(ctx context.Context, googleID string) (*domain.Customer, error) {
	return r.get(ctx, `google_id=?`, googleID)
}

func (r *CustomerRepo) List(ctx context.Context, limit int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = 200
	}
	out := []domain.Customer{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+customerCols+` FROM customers
		ORDER BY created_at DESC
		LIMIT ?`), limit)
	return out, err
}

func (r *CustomerRepo) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CustomerRepo) UpdateProfile(ctx context.Context, id, name, phone string, now time.Time) (bool, error) {
	return r.exec(ctx, `UPDATE customers SET name=?, phone=?, updated_at=? WHERE id=?`, name, phone, now, id)
}

func (r *CustomerRepo) SetPassword(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	return r.exec(ctx, `UPDATE customers SET password_hash=?, updated_at=? WHERE id=?`, hash, now, id)
}

// TouchLogin records a successful sign-in. A verified flag is never cleared.
func (r *CustomerRepo) TouchLogin(ctx context.Context, id string, emailVerified bool, now time.Time) error {
	_, err := r.exec(ctx, `
		UPDATE customers
		SET last_login_at=?, email_verified=(email_verified OR ?), updated_at=?
		WHERE id=?`, now, emailVerified, now, id)
	return err
}

// LinkGoogle attaches a Google account and marks the email verified. It never
// replaces a different Google account already linked and reports whether a
// row changed.
func (r *CustomerRepo) LinkGoogle(ctx context.Context, id, googleID string, now time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE customers
		SET google_id=?, auth_provider=?, email_verified=?, updated_at=?
		WHERE id=? AND (google_id IS NULL OR google_id='' OR google_id=?)`, googleID, domain.ProviderGoogle, true, now, id, googleID)
}

// UnlinkGoogle clears the Google link only while a password is set, so the
// customer is never left without a way to sign in. It reports whether a row
// changed.
func (r *CustomerRepo) UnlinkGoogle(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.exec(ctx, `
		UPDATE customers
		SET google_id=NULL, auth_provider=NULL, updated_at=?
		WHERE id=? AND password_hash IS NOT NULL AND password_hash <> ''`, now, id)
}

// EnsureAdmin promotes the account with this email or creates it.
func (r *CustomerRepo) EnsureAdmin(ctx context.Context, id, name, email, hash string, now time.Time) error {
	ok, err := r.exec(ctx, `
		UPDATE customers SET role=?, password_hash=?, updated_at=?
		WHERE LOWER(email)=LOWER(?)`, domain.RoleAdmin, hash, now, email)
	if err != nil || ok {
		return err
	}
	provider := domain.ProviderEmail
	return r.Create(ctx, &domain.Customer{
		ID:            id,
		Name:          name,
		Email:         email,
		PasswordHash:  &hash,
		AuthProvider:  &provider,
		EmailVerified: true,
		Role:          domain.RoleAdmin,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
