package http_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanstore/internal/config"
	"beanstore/internal/domain"
	apphttp "beanstore/internal/http"
	"beanstore/internal/http/handlers"
	"beanstore/internal/session"
)

func TestRegisterMeLogout(t *testing.T) {
	s := newServer(t)
	sid := s.register("王小明", "Ming@Example.com", "beans4life!")
	assert.True(t, sid.HttpOnly)

	resp, env := s.call(http.MethodGet, "/api/auth/me", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p domain.Profile
	env.decode(t, &p)
	assert.Equal(t, "ming@example.com", p.Email)
	assert.True(t, p.HasPassword)
	assert.False(t, p.GoogleLinked)
	assert.Equal(t, domain.RoleCustomer, p.Role)

	resp, env = s.call(http.MethodPost, "/api/auth/logout", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "已登出", env.Message)

	// the token is dead even if the client keeps sending it
	resp, _ = s.call(http.MethodGet, "/api/auth/me", nil, sid)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// logging out again is harmless
	resp, env = s.call(http.MethodPost, "/api/auth/logout", nil, sid)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	s := newServer(t)
	s.register("王小明", "ming@example.com", "beans4life!")

	_, wrongPass := s.call(http.MethodPost, "/api/auth/login", map[string]string{"email": "ming@example.com", "password": "nope-nope1!"})
	resp, unknown := s.call(http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": "nope-nope1!"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, wrongPass.Error, unknown.Error)
	assert.False(t, unknown.Success)
	assert.Nil(t, cookie(resp, session.CookieName))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	s := newServer(t)
	s.register("王小明", "ming@example.com", "beans4life!")

	resp, env := s.call(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "王小明", "phone": "0912-345-678", "email": "MING@example.com", "password": "beans4life!",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "此電子郵件已被註冊", env.Error)

	resp, _ = s.call(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "弱密碼", "phone": "0912-345-678", "email": "weak@example.com", "password": "password",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOTPSignIn(t *testing.T) {
	s := newServer(t)
	resp, env := s.call(http.MethodPost, "/api/auth/otp/request", map[string]string{"email": "otp@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	code := s.mail.code("otp@example.com")
	require.Len(t, code, 6)

	resp, _ = s.call(http.MethodPost, "/api/auth/otp/verify", map[string]string{"email": "otp@example.com", "code": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = s.call(http.MethodPost, "/api/auth/otp/verify", map[string]string{"email": "otp@example.com", "code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var p domain.Profile
	env.decode(t, &p)
	assert.False(t, p.HasPassword)
	require.NotNil(t, p.AuthProvider)
	assert.Equal(t, domain.ProviderOTP, *p.AuthProvider)
	require.NotNil(t, cookie(resp, session.CookieName))

	// codes are single use
	resp, _ = s.call(http.MethodPost, "/api/auth/otp/verify", map[string]string{"email": "otp@example.com", "code": code})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOTPRequestIsRateLimited(t *testing.T) {
	s := newServer(t, func(_ *config.Config, o *apphttp.Options) { o.Limits.OTPRequest = 2 })
	for i := 0; i < 2; i++ {
		resp, _ := s.call(http.MethodPost, "/api/auth/otp/request", map[string]string{"email": "otp@example.com"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, env := s.call(http.MethodPost, "/api/auth/otp/request", map[string]string{"email": "otp@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newServer(t, func(_ *config.Config, o *apphttp.Options) { o.Limits.Login = 2 })
	body := map[string]string{"email": "ghost@example.com", "password": "nope-nope1!"}
	for i := 0; i < 2; i++ {
		resp, _ := s.call(http.MethodPost, "/api/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := s.call(http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestGoogleSignInLinksExistingAccount(t *testing.T) {
	s := newServer(t)
	s.register("王小明", "ming@example.com", "beans4life!")

	resp, _ := s.call(http.MethodPost, "/api/auth/google", map[string]string{"id_token": "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := s.call(http.MethodPost, "/api/auth/google", map[string]string{"id_token": "tok-ming"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var p domain.Profile
	env.decode(t, &p)
	assert.True(t, p.GoogleLinked)
	assert.True(t, p.HasPassword)
	assert.Equal(t, "王小明", p.Name)
}

func TestUnlinkGoogleNeedsPassword(t *testing.T) {
	s := newServer(t)

	// OTP account, then Google on the same email
	s.call(http.MethodPost, "/api/auth/otp/request", map[string]string{"email": "otp@example.com"})
	s.call(http.MethodPost, "/api/auth/otp/verify", map[string]string{"email": "otp@example.com", "code": s.mail.code("otp@example.com")})
	resp, _ := s.call(http.MethodPost, "/api/auth/google", map[string]string{"id_token": "tok-otp"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sid := cookie(resp, session.CookieName)
	require.NotNil(t, sid)

	resp, env := s.call(http.MethodPost, "/api/auth/unlink-google", nil, sid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "尚未設定密碼", env.Error)

	resp, env = s.call(http.MethodPost, "/api/auth/password", map[string]string{"password": "beans4life!"}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	resp, env = s.call(http.MethodPost, "/api/auth/unlink-google", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var ls domain.LinkState
	env.decode(t, &ls)
	assert.True(t, ls.HasPassword)

	resp, env = s.call(http.MethodGet, "/api/auth/me", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p domain.Profile
	env.decode(t, &p)
	assert.False(t, p.GoogleLinked)
}

func TestPasswordChangeEndsOtherSessions(t *testing.T) {
	s := newServer(t)
	here := s.register("王小明", "ming@example.com", "beans4life!")
	phone := s.login("ming@example.com", "beans4life!")
	laptop := s.login("ming@example.com", "beans4life!")

	resp, env := s.call(http.MethodPost, "/api/auth/password", map[string]string{"password": "fresh-r0ast!"}, here)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	for _, sid := range []*http.Cookie{phone, laptop} {
		resp, _ = s.call(http.MethodGet, "/api/auth/me", nil, sid)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ = s.call(http.MethodGet, "/api/auth/me", nil, here)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the session that changed the password stays")

	s.login("ming@example.com", "fresh-r0ast!")
}

func TestProfileUpdate(t *testing.T) {
	s := newServer(t)
	sid := s.register("王小明", "ming@example.com", "beans4life!")

	resp, env := s.call(http.MethodPut, "/api/auth/profile", map[string]string{"name": "王大明", "phone": "02-2345-6789"}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var p domain.Profile
	env.decode(t, &p)
	assert.Equal(t, "王大明", p.Name)

	resp, _ = s.call(http.MethodPut, "/api/auth/profile", map[string]string{"name": "王大明"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

var errStoreDown = errors.New("session store: connection refused")

// downStore fails every call, like an unreachable Redis.
type downStore struct{}

func (downStore) Create(context.Context, domain.Session) error { return errStoreDown }
func (downStore) Get(context.Context, string) (domain.Session, error) {
	return domain.Session{}, errStoreDown
}
func (downStore) Touch(context.Context, string, time.Time) error { return errStoreDown }
func (downStore) Delete(context.Context, string) error           { return errStoreDown }

func TestSessionStoreOutageKeepsPublicRoutesUp(t *testing.T) {
	s := newServerWith(t, handlers.Clients{Sessions: downStore{}})
	buf := captureLog(t)
	sid := &http.Cookie{Name: session.CookieName, Value: uuid.NewString()}

	resp, env := s.call(http.MethodPost, "/api/auth/logout", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	assert.True(t, env.Success)
	cleared := cookie(resp, session.CookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	resp, _ = s.call(http.MethodGet, "/api/products", nil, sid)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.call(http.MethodGet, "/api/auth/me", nil, sid)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.True(t, hasEvent(logEvents(t, buf), "error", "session.validate"))
}
