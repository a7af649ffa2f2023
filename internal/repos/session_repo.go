package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"beanstore/internal/domain"
)

// SessionRepo is the SQL session store.
type SessionRepo struct{ db *sqlx.DB }

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// Create also stores the expiry as unix seconds; sqlite keeps timestamps as
// text, so Purge compares that column instead.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sessions(token,customer_id,created_at,expires_at,expires_unix,last_seen)
		VALUES(?,?,?,?,?,?)`), s.Token, s.CustomerID, s.CreatedAt, s.ExpiresAt, s.ExpiresAt.Unix(), s.LastSeen)
	return err
}

// Get returns domain.ErrNoSession for unknown tokens.
func (r *SessionRepo) Get(ctx context.Context, token string) (domain.Session, error) {
	var s domain.Session
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`
		SELECT token,customer_id,created_at,expires_at,last_seen
		FROM sessions WHERE token=?`), token)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNoSession
	}
	return s, err
}

func (r *SessionRepo) Touch(ctx context.Context, token string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE sessions SET last_seen=? WHERE token=?`), now, token)
	return err
}

// Delete is a no-op for unknown tokens.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE token=?`), token)
	return err
}

// DeleteForCustomer ends every session of a customer except the one with
// token except, and reports how many were ended.
func (r *SessionRepo) DeleteForCustomer(ctx context.Context, customerID, except string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE customer_id=? AND token<>?`), customerID, except)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Purge removes sessions that expired before now in a single statement.
func (r *SessionRepo) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE expires_unix < ?`), now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
