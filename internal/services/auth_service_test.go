package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/oauth"
	"beanstore/internal/services"
)

var reg = services.RegisterInput{Name: "王小明", Phone: "0912-345-678", Email: "Ming@Example.com", Password: "beans4life!"}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t, memdb(t), &fakeMail{}, nil)

	c, err := s.Register(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, "ming@example.com", c.Email)
	assert.Equal(t, "0912345678", c.Phone)
	assert.True(t, c.HasPassword())
	require.NotNil(t, c.AuthProvider)
	assert.Equal(t, domain.ProviderEmail, *c.AuthProvider)

	_, err = s.Register(ctx, reg)
	assert.ErrorIs(t, err, apperr.ErrValidation, "duplicate email")

	weak := reg
	weak.Email, weak.Password = "weak@example.com", "password"
	_, err = s.Register(ctx, weak)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := s.Login(ctx, "MING@example.com", "beans4life!")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.NotNil(t, got.LastLoginAt)

	for _, pw := range []string{"wrong-pass1!", ""} {
		_, err = s.Login(ctx, reg.Email, pw)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	}
	_, err = s.Login(ctx, "nobody@example.com", "beans4life!")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestOTPFlow(t *testing.T) {
	ctx := context.Background()
	m := &fakeMail{}
	s := newAuth(t, memdb(t), m, nil)

	require.NoError(t, s.RequestOTP(ctx, "Otp@Example.com"))
	code := m.lastCode()
	require.Len(t, code, 6)

	c, err := s.VerifyOTP(ctx, "otp@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "otp", c.Name)
	assert.True(t, c.EmailVerified)
	assert.False(t, c.HasPassword())
	require.NotNil(t, c.AuthProvider)
	assert.Equal(t, domain.ProviderOTP, *c.AuthProvider)

	_, err = s.VerifyOTP(ctx, "otp@example.com", code)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "codes are single use")

	require.NoError(t, s.RequestOTP(ctx, "otp@example.com"))
	again, err := s.VerifyOTP(ctx, "otp@example.com", m.lastCode())
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID, "second sign-in reuses the account")
}

func TestOTPAttemptLimit(t *testing.T) {
	ctx := context.Background()
	m := &fakeMail{}
	s := newAuth(t, memdb(t), m, nil)

	require.NoError(t, s.RequestOTP(ctx, "a@example.com"))
	code := m.lastCode()
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < services.MaxOTPAttempts; i++ {
		_, err := s.VerifyOTP(ctx, "a@example.com", wrong)
		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	}
	_, err := s.VerifyOTP(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "code is burned after too many attempts")
}

func TestOTPExpiry(t *testing.T) {
	ctx := context.Background()
	m := &fakeMail{}
	s := newAuth(t, memdb(t), m, nil)
	now := time.Now().UTC()
	s.Clock = func() time.Time { return now }

	require.NoError(t, s.RequestOTP(ctx, "late@example.com"))
	now = now.Add(services.OTPTTL)
	_, err := s.VerifyOTP(ctx, "late@example.com", m.lastCode())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRequestOTPMailFailure(t *testing.T) {
	s := newAuth(t, memdb(t), &fakeMail{err: errors.New("smtp down")}, nil)
	err := s.RequestOTP(context.Background(), "x@example.com")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.NotContains(t, apperr.PublicMessage(err), "smtp")

	err = s.RequestOTP(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()
	g := fakeGoogle{
		"new":      {ID: "g-new", Email: "fresh@example.com", EmailVerified: true, Name: "Fresh"},
		"existing": {ID: "g-old", Email: "ming@example.com", EmailVerified: true},
		"takeover": {ID: "g-other", Email: "ming@example.com", EmailVerified: true},
	}
	s := newAuth(t, memdb(t), &fakeMail{}, g)

	c, err := s.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", c.Name)
	assert.True(t, c.HasGoogle())
	assert.False(t, c.HasPassword())

	again, err := s.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	owner, err := s.Register(ctx, reg)
	require.NoError(t, err)
	linked, err := s.GoogleLogin(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, linked.ID)
	assert.True(t, linked.HasGoogle())
	assert.True(t, linked.HasPassword())

	// a second Google account with the same email cannot replace the link
	_, err = s.GoogleLogin(ctx, "takeover")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	kept, err := s.Me(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.GoogleID)
	assert.Equal(t, "g-old", *kept.GoogleID)

	_, err = s.GoogleLogin(ctx, "forged")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = newAuth(t, memdb(t), &fakeMail{}, nil).GoogleLogin(ctx, "new")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUnlinkGoogle(t *testing.T) {
	ctx := context.Background()
	g := fakeGoogle{"tok": {ID: "g-1", Email: "g@example.com", EmailVerified: true}}
	s := newAuth(t, memdb(t), &fakeMail{}, g)

	c, err := s.GoogleLogin(ctx, "tok")
	require.NoError(t, err)

	_, err = s.UnlinkGoogle(ctx, c.ID)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "尚未設定密碼", apperr.PublicMessage(err))

	still, err := s.Me(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, still.HasGoogle(), "failed unlink leaves the link in place")

	_, err = s.SetPassword(ctx, c.ID, "short")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.SetPassword(ctx, c.ID, "roastedBean9")
	require.NoError(t, err)

	out, err := s.UnlinkGoogle(ctx, c.ID)
	require.NoError(t, err)
	st := out.LinkState()
	assert.Nil(t, st.AuthProvider)
	assert.True(t, st.HasPassword)
	assert.False(t, out.HasGoogle())

	_, err = s.UnlinkGoogle(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfileAndList(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t, memdb(t), &fakeMail{}, oauth.Verifier(nil))

	c, err := s.Register(ctx, reg)
	require.NoError(t, err)

	_, err = s.UpdateProfile(ctx, c.ID, "", "0912345678")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.UpdateProfile(ctx, c.ID, "Ming", "12345")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.UpdateProfile(ctx, "missing", "Ming", "0912345678")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	up, err := s.UpdateProfile(ctx, c.ID, "  Ming  ", "0987-654-321")
	require.NoError(t, err)
	assert.Equal(t, "Ming", up.Name)
	assert.Equal(t, "0987654321", up.Phone)

	list, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasPassword)
}
