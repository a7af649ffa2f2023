package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"beanstore/internal/domain"
	"beanstore/internal/events"
	"beanstore/internal/oauth"
	"beanstore/internal/repos"
	"beanstore/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type sentOTP struct {
	To, Code string
}

type fakeMail struct {
	mu       sync.Mutex
	codes    []sentOTP
	receipts []string
	err      error
}

func (m *fakeMail) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes = append(m.codes, sentOTP{to, code})
	return nil
}

func (m *fakeMail) SendOrderPlaced(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.receipts = append(m.receipts, o.OrderCode)
	return nil
}

func (m *fakeMail) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1].Code
}

type fakeGoogle map[string]*oauth.GoogleUser

func (f fakeGoogle) VerifyIDToken(_ context.Context, tok string) (*oauth.GoogleUser, error) {
	if u, ok := f[tok]; ok {
		return u, nil
	}
	return nil, oauth.ErrInvalidToken
}

type recorder struct {
	mu  sync.Mutex
	evs []events.OrderEvent
}

func (r *recorder) Publish(_ context.Context, e events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.evs))
	for i, e := range r.evs {
		out[i] = e.Type
	}
	return out
}

func newAuth(t *testing.T, db *sqlx.DB, m *fakeMail, g oauth.Verifier) *services.AuthService {
	t.Helper()
	s := services.NewAuthService(repos.NewCustomerRepo(db), repos.NewOTPRepo(db), m, g)
	s.Cost = bcrypt.MinCost
	return s
}
