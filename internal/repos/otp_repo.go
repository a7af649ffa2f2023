package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type OTPCode struct {
	Email     string    `db:"email"`
	CodeHash  string    `db:"code_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

type OTPRepo struct{ db *sqlx.DB }

func NewOTPRepo(db *sqlx.DB) *OTPRepo { return &OTPRepo{db: db} }

// Put stores the live code for an email, replacing any earlier one.
func (r *OTPRepo) Put(ctx context.Context, c OTPCode) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO otp_codes(email,code_hash,expires_at,attempts,created_at)
		VALUES(:email,:code_hash,:expires_at,0,:created_at)
		ON CONFLICT(email) DO UPDATE SET
		  code_hash=excluded.code_hash,
		  expires_at=excluded.expires_at,
		  attempts=0,
		  created_at=excluded.created_at`, c)
	return err
}

// Get returns sql.ErrNoRows when no code is pending.
func (r *OTPRepo) Get(ctx context.Context, email string) (OTPCode, error) {
	var c OTPCode
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT email,code_hash,expires_at,attempts,created_at
		FROM otp_codes WHERE email=?`), email)
	return c, err
}

// AddAttempt counts one failed verification and returns the new total.
func (r *OTPRepo) AddAttempt(ctx context.Context, email string) (int, error) {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE otp_codes SET attempts=attempts+1 WHERE email=?`), email); err != nil {
		return 0, err
	}
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT attempts FROM otp_codes WHERE email=?`), email)
	return n, err
}

func (r *OTPRepo) Delete(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM otp_codes WHERE email=?`), email)
	return err
}
