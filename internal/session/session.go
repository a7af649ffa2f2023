// Package session issues, resolves and ends customer sessions.
//
// A session is an opaque uuid token carried in the HttpOnly "sid" cookie and
// stored server side. The Manager is the only writer of session state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"beanstore/internal/domain"
	applog "beanstore/internal/log"
)

const CookieName = "sid"

// Store persists sessions. Get returns domain.ErrNoSession for unknown tokens
// and Delete is a no-op for them.
type Store interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, token string) (domain.Session, error)
	Touch(ctx context.Context, token string, now time.Time) error
	Delete(ctx context.Context, token string) error
}

// Purger is implemented by stores that need expired rows removed explicitly.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Revoker is implemented by stores that can end all sessions of a customer.
type Revoker interface {
	DeleteForCustomer(ctx context.Context, customerID, except string) (int64, error)
}

// Identity is what a valid session resolves to.
type Identity struct {
	Token      string
	CustomerID string
	ExpiresAt  time.Time
}

type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, secureCookie bool) *Manager {
	return &Manager{store: store, ttl: ttl, secure: secureCookie, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source; used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates and stores a new session for the customer.
func (m *Manager) Issue(ctx context.Context, customerID string) (domain.Session, error) {
	now := m.now()
	s := domain.Session{
		Token:      uuid.NewString(),
		CustomerID: customerID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastSeen:   now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return domain.Session{}, fmt.Errorf("session: create: %w", err)
	}
	return s, nil
}

// Login ends any session the request already carries, issues a fresh one and
// sets the cookie.
func (m *Manager) Login(c *fiber.Ctx, customerID string) (domain.Session, error) {
	if old := c.Cookies(CookieName); old != "" {
		if err := m.store.Delete(c.UserContext(), old); err != nil {
			applog.Error(c, "session.rotate.fail", err, nil)
		}
	}
	s, err := m.Issue(c.UserContext(), customerID)
	if err != nil {
		return domain.Session{}, err
	}
	m.setCookie(c, s.Token, s.ExpiresAt)
	return s, nil
}

// Validate resolves the request's cookie. A missing, malformed, unknown or
// expired token yields ok=false with a nil error; err is reserved for store
// failures.
func (m *Manager) Validate(c *fiber.Ctx) (Identity, bool, error) {
	token := c.Cookies(CookieName)
	if token == "" {
		return Identity{}, false, nil
	}
	if _, err := uuid.Parse(token); err != nil {
		return Identity{}, false, nil
	}
	ctx := c.UserContext()
	s, err := m.store.Get(ctx, token)
	if errors.Is(err, domain.ErrNoSession) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("session: get: %w", err)
	}
	now := m.now()
	if s.Expired(now) {
		if err := m.store.Delete(ctx, token); err != nil {
			applog.Error(c, "session.expire.fail", err, nil)
		}
		return Identity{}, false, nil
	}
	if err := m.store.Touch(ctx, token, now); err != nil {
		applog.Error(c, "session.touch.fail", err, nil)
	}
	return Identity{Token: token, CustomerID: s.CustomerID, ExpiresAt: s.ExpiresAt}, true, nil
}

// Delete ends the request's session and expires the cookie. It never fails:
// store errors are logged and dropped, and calling it twice is harmless.
func (m *Manager) Delete(c *fiber.Ctx) {
	if token := c.Cookies(CookieName); token != "" {
		if err := m.store.Delete(c.UserContext(), token); err != nil {
			applog.Error(c, "session.delete.fail", err, nil)
		}
	}
	m.setCookie(c, "", m.now().Add(-time.Hour))
}

// EndOtherSessions signs the customer out everywhere except the request's own
// session, e.g. after a credential change. Stores without Revoker report 0.
func (m *Manager) EndOtherSessions(c *fiber.Ctx, customerID string) (int64, error) {
	r, ok := m.store.(Revoker)
	if !ok {
		return 0, nil
	}
	n, err := r.DeleteForCustomer(c.UserContext(), customerID, c.Cookies(CookieName))
	if err != nil {
		return 0, fmt.Errorf("session: revoke: %w", err)
	}
	return n, nil
}

// Purge drops expired sessions when the store keeps them around.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	p, ok := m.store.(Purger)
	if !ok {
		return 0, nil
	}
	return p.Purge(ctx, m.now())
}

func (m *Manager) setCookie(c *fiber.Ctx, value string, expires time.Time) {
	maxAge := int(m.ttl.Seconds())
	if value == "" {
		maxAge = -1
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   m.secure,
		Expires:  expires,
		MaxAge:   maxAge,
	})
}
