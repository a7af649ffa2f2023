package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"beanstore/internal/config"
	"beanstore/internal/domain"
	apphttp "beanstore/internal/http"
	"beanstore/internal/http/handlers"
	"beanstore/internal/oauth"
	"beanstore/internal/repos"
	"beanstore/internal/session"
)

const (
	adminEmail    = "admin@beanstore.test"
	adminPassword = "r0ast-master!"
)

type fakeMail struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *fakeMail) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *fakeMail) SendOrderPlaced(context.Context, domain.Order) error { return nil }

func (m *fakeMail) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type fakeGoogle map[string]*oauth.GoogleUser

func (f fakeGoogle) VerifyIDToken(_ context.Context, tok string) (*oauth.GoogleUser, error) {
	if u, ok := f[tok]; ok {
		return u, nil
	}
	return nil, oauth.ErrInvalidToken
}

type testServer struct {
	t    *testing.T
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
	mail *fakeMail
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Debug   string          `json:"debug"`
}

func (e envelope) decode(t *testing.T, v any) {
	t.Helper()
	require.NotEmpty(t, e.Data, "envelope has no data")
	require.NoError(t, json.Unmarshal(e.Data, v))
}

func newServer(t *testing.T, tweak ...func(*config.Config, *apphttp.Options)) *testServer {
	t.Helper()
	return newServerWith(t, handlers.Clients{}, tweak...)
}

// newServerWith is newServer with caller supplied clients. Mail and Google
// default to the in-memory fakes.
func newServerWith(t *testing.T, cl handlers.Clients, tweak ...func(*config.Config, *apphttp.Options)) *testServer {
	t.Helper()
	cfg := config.Config{
		DBDriver:     "sqlite",
		DBDSN:        ":memory:",
		SessionStore: "sql",
		SessionTTL:   time.Hour,
	}
	var opt apphttp.Options
	for _, fn := range tweak {
		fn(&cfg, &opt)
	}

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fm := &fakeMail{}
	cl.Mail = fm
	if cl.Google == nil {
		cl.Google = fakeGoogle{
			"tok-ming": {ID: "g-ming", Email: "ming@example.com", EmailVerified: true, Name: "王小明"},
			"tok-otp":  {ID: "g-otp", Email: "otp@example.com", EmailVerified: true, Name: "林小姐"},
		}
	}
	deps := handlers.NewDeps(db, cfg, cl)
	deps.Auth.Cost = bcrypt.MinCost

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repos.NewCustomerRepo(db).EnsureAdmin(context.Background(),
		uuid.NewString(), "店長", adminEmail, string(hash), time.Now().UTC()))

	return &testServer{t: t, app: apphttp.NewApp(cfg, deps, opt), db: db, deps: deps, mail: fm}
}

func (s *testServer) send(req *http.Request, cookies ...*http.Cookie) *http.Response {
	s.t.Helper()
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	return resp
}

// call sends body as JSON and decodes the envelope.
func (s *testServer) call(method, path string, body any, cookies ...*http.Cookie) (*http.Response, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := s.send(req, cookies...)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	var env envelope
	require.NoError(s.t, json.Unmarshal(raw, &env), string(raw))
	return resp, env
}

func (s *testServer) form(path string, vals url.Values, cookies ...*http.Cookie) *http.Response {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.send(req, cookies...)
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *testServer) login(email, password string) *http.Cookie {
	s.t.Helper()
	resp, env := s.call(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, resp.StatusCode, env.Error)
	sid := cookie(resp, session.CookieName)
	require.NotNil(s.t, sid)
	return sid
}

func (s *testServer) admin() *http.Cookie { return s.login(adminEmail, adminPassword) }

func (s *testServer) register(name, email, password string) *http.Cookie {
	s.t.Helper()
	resp, env := s.call(http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "phone": "0912-345-678", "email": email, "password": password,
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, env.Error)
	sid := cookie(resp, session.CookieName)
	require.NotNil(s.t, sid)
	return sid
}

func orderBody(items ...map[string]any) map[string]any {
	return map[string]any{
		"customer_name":  "陳小姐",
		"customer_phone": "0912-345-678",
		"customer_email": "chen@example.com",
		"pickup_method":  "in_store",
		"payment_method": "cash",
		"items":          items,
	}
}

func (s *testServer) placeOrder(cookies ...*http.Cookie) domain.Order {
	s.t.Helper()
	resp, env := s.call(http.MethodPost, "/api/orders",
		orderBody(map[string]any{"product_id": "eth-yirgacheffe", "quantity": 2}), cookies...)
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, env.Error)
	var o domain.Order
	env.decode(s.t, &o)
	return o
}
