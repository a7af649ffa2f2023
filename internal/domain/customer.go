package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Phone         string          `db:"phone"`
	Email         string          `db:"email"`
	PasswordHash  *string         `db:"password_hash"`
	AuthProvider  *AuthProvider   `db:"auth_provider"`
	GoogleID      *string         `db:"google_id"`
	EmailVerified bool            `db:"email_verified"`
	Role          Role            `db:"role"`
	LastLoginAt   *time.Time      `db:"last_login_at"`
	OrderCount    int             `db:"order_count"`
	TotalSpent    decimal.Decimal `db:"total_spent"`
	LastOrderAt   *time.Time      `db:"last_order_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (c *Customer) HasPassword() bool { return c.PasswordHash != nil && *c.PasswordHash != "" }

func (c *Customer) HasGoogle() bool { return c.GoogleID != nil && *c.GoogleID != "" }

func (c *Customer) IsAdmin() bool { return c.Role == RoleAdmin }

// Profile is the customer as shown to the customer. It never carries the password hash.
type Profile struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	AuthProvider  *AuthProvider   `json:"auth_provider"`
	HasPassword   bool            `json:"has_password"`
	GoogleLinked  bool            `json:"google_linked"`
	EmailVerified bool            `json:"email_verified"`
	Role          Role            `json:"role"`
	LastLoginAt   *time.Time      `json:"last_login_at"`
	OrderCount    int             `json:"order_count"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LastOrderAt   *time.Time      `json:"last_order_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (c *Customer) Profile() Profile {
	return Profile{
		ID:            c.ID,
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		AuthProvider:  c.AuthProvider,
		HasPassword:   c.HasPassword(),
		GoogleLinked:  c.HasGoogle(),
		EmailVerified: c.EmailVerified,
		Role:          c.Role,
		LastLoginAt:   c.LastLoginAt,
		OrderCount:    c.OrderCount,
		TotalSpent:    c.TotalSpent,
		LastOrderAt:   c.LastOrderAt,
		CreatedAt:     c.CreatedAt,
	}
}

// LinkState is the minimal projection returned after linking or unlinking a provider.
type LinkState struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	AuthProvider *AuthProvider `json:"auth_provider"`
	HasPassword  bool          `json:"has_password"`
}

func (c *Customer) LinkState() LinkState {
	return LinkState{ID: c.ID, Email: c.Email, AuthProvider: c.AuthProvider, HasPassword: c.HasPassword()}
}

// Session binds an opaque token to a customer until ExpiresAt.
type Session struct {
	Token      string    `db:"token" json:"token"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	LastSeen   time.Time `db:"last_seen" json:"last_seen"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// ErrNoSession is returned by session stores for unknown tokens.
var ErrNoSession = errors.New("session not found")
