package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/mail"
	"beanstore/internal/oauth"
	"beanstore/internal/otp"
	"beanstore/internal/repos"
	"beanstore/internal/validate"
)

const (
	OTPTTL         = 5 * time.Minute
	MaxOTPAttempts = 5
	maxNameLen     = 50
)

var (
	errBadCreds    = apperr.Unauthorized("電子郵件或密碼錯誤")
	errBadOTP      = apperr.Unauthorized("驗證碼錯誤或已過期")
	errNoPassword  = apperr.Validation("尚未設定密碼")
	errOtherGoogle = apperr.Unauthorized("此帳號已綁定其他 Google 帳號")
)

type AuthService struct {
	Customers *repos.CustomerRepo
	OTPs      *repos.OTPRepo
	Mail      mail.Sender
	Google    oauth.Verifier
	// Cost is the bcrypt cost for new hashes.
	Cost  int
	Clock clock
}

func NewAuthService(customers *repos.CustomerRepo, otps *repos.OTPRepo, sender mail.Sender, google oauth.Verifier) *AuthService {
	return &AuthService{Customers: customers, OTPs: otps, Mail: sender, Google: google, Cost: bcrypt.DefaultCost}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *AuthService) hash(secret string) (string, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return string(b), nil
}

func (s *AuthService) reload(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := s.Customers.ByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "找不到會員")
	}
	return c, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Customer, error) {
	name, ok := validate.Name(in.Name, maxNameLen)
	if !ok {
		return nil, apperr.Validation("請輸入姓名")
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		return nil, apperr.Validation("手機號碼格式錯誤")
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, apperr.Validation("電子郵件格式錯誤")
	}
	if !validate.Password(in.Password) {
		return nil, apperr.Validation("密碼強度不足")
	}

	if _, err := s.Customers.ByEmail(ctx, email); err == nil {
		return nil, apperr.Validation("此電子郵件已被註冊")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.Clock.now()
	provider := domain.ProviderEmail
	c := &domain.Customer{
		ID:           uuid.NewString(),
		Name:         name,
		Phone:        phone,
		Email:        email,
		PasswordHash: &hash,
		AuthProvider: &provider,
		Role:         domain.RoleCustomer,
		LastLoginAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// Login checks an email and password. Every failure looks the same to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Customer, error) {
	email, ok := validate.Email(email)
	if !ok || password == "" {
		return nil, errBadCreds
	}
	c, err := s.Customers.ByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadCreds
	}
	if err != nil {
		return nil, err
	}
	if !c.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*c.PasswordHash), []byte(password)) != nil {
		return nil, errBadCreds
	}
	if err := s.Customers.TouchLogin(ctx, c.ID, false, s.Clock.now()); err != nil {
		return nil, err
	}
	return s.reload(ctx, c.ID)
}

// RequestOTP replaces any pending code for email with a fresh one and mails it.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email, ok := validate.Email(email)
	if !ok {
		return apperr.Validation("電子郵件格式錯誤")
	}
	code, err := otp.Generate()
	if err != nil {
		return err
	}
	hash, err := s.hash(code)
	if err != nil {
		return err
	}
	now := s.Clock.now()
	if err := s.OTPs.Put(ctx, repos.OTPCode{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(OTPTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := s.Mail.SendOTP(ctx, email, code, OTPTTL); err != nil {
		return apperr.Internal("驗證碼寄送失敗，請稍後再試", err)
	}
	return nil
}

// VerifyOTP consumes the pending code for email and signs the customer in,
// creating the account on first use.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*domain.Customer, error) {
	email, ok := validate.Email(email)
	if !ok {
		return nil, errBadOTP
	}
	code, ok = validate.OTPCode(code)
	if !ok {
		return nil, errBadOTP
	}
	rec, err := s.OTPs.Get(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadOTP
	}
	if err != nil {
		return nil, err
	}
	now := s.Clock.now()
	if !now.Before(rec.ExpiresAt) || rec.Attempts >= MaxOTPAttempts {
		if err := s.OTPs.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, errBadOTP
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		n, err := s.OTPs.AddAttempt(ctx, email)
		if err != nil {
			return nil, err
		}
		if n >= MaxOTPAttempts {
			if err := s.OTPs.Delete(ctx, email); err != nil {
				return nil, err
			}
		}
		return nil, errBadOTP
	}
	if err := s.OTPs.Delete(ctx, email); err != nil {
		return nil, err
	}

	c, err := s.Customers.ByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		provider := domain.ProviderOTP
		c = &domain.Customer{
			ID:            uuid.NewString(),
			Name:          localPart(email),
			Email:         email,
			AuthProvider:  &provider,
			EmailVerified: true,
			Role:          domain.RoleCustomer,
			LastLoginAt:   &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.Customers.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return c, nil
	case err != nil:
		return nil, err
	}
	if err := s.Customers.TouchLogin(ctx, c.ID, true, now); err != nil {
		return nil, err
	}
	return s.reload(ctx, c.ID)
}

// GoogleLogin signs in with a Google ID token. An existing account with the
// same email is linked unless it is already linked to a different Google
// account; otherwise a new one is created.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*domain.Customer, error) {
	if s.Google == nil {
		return nil, apperr.Unauthorized("未啟用 Google 登入")
	}
	u, err := s.Google.VerifyIDToken(ctx, idToken)
	if errors.Is(err, oauth.ErrInvalidToken) {
		return nil, apperr.Unauthorized("Google 驗證失敗")
	}
	if err != nil {
		return nil, err
	}
	now := s.Clock.now()

	c, err := s.Customers.ByGoogleID(ctx, u.ID)
	if err == nil {
		if err := s.Customers.TouchLogin(ctx, c.ID, true, now); err != nil {
			return nil, err
		}
		return s.reload(ctx, c.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	c, err = s.Customers.ByEmail(ctx, u.Email)
	switch {
	case err == nil:
		if c.HasGoogle() && *c.GoogleID != u.ID {
			return nil, errOtherGoogle
		}
		linked, err := s.Customers.LinkGoogle(ctx, c.ID, u.ID, now)
		if err != nil {
			return nil, fmt.Errorf("link google: %w", err)
		}
		if !linked {
			return nil, errOtherGoogle
		}
		if err := s.Customers.TouchLogin(ctx, c.ID, true, now); err != nil {
			return nil, err
		}
		return s.reload(ctx, c.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = localPart(u.Email)
	}
	provider := domain.ProviderGoogle
	gid := u.ID
	c = &domain.Customer{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         u.Email,
		AuthProvider:  &provider,
		GoogleID:      &gid,
		EmailVerified: true,
		Role:          domain.RoleCustomer,
		LastLoginAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func (s *AuthService) Me(ctx context.Context, id string) (*domain.Customer, error) {
	return s.reload(ctx, id)
}

func (s *AuthService) UpdateProfile(ctx context.Context, id, name, phone string) (*domain.Customer, error) {
	name, ok := validate.Name(name, maxNameLen)
	if !ok {
		return nil, apperr.Validation("請輸入姓名")
	}
	phone, ok = validate.Phone(phone)
	if !ok {
		return nil, apperr.Validation("手機號碼格式錯誤")
	}
	found, err := s.Customers.UpdateProfile(ctx, id, name, phone, s.Clock.now())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("找不到會員")
	}
	return s.reload(ctx, id)
}

// SetPassword sets or replaces the password. Weak passwords are rejected.
func (s *AuthService) SetPassword(ctx context.Context, id, password string) (*domain.Customer, error) {
	if !validate.Password(password) {
		return nil, apperr.Validation("密碼強度不足")
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	found, err := s.Customers.SetPassword(ctx, id, hash, s.Clock.now())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("找不到會員")
	}
	return s.reload(ctx, id)
}

// UnlinkGoogle removes the Google link. It refuses while no password is set
// so the account keeps a way to sign in.
func (s *AuthService) UnlinkGoogle(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasPassword() {
		return nil, errNoPassword
	}
	ok, err := s.Customers.UnlinkGoogle(ctx, id, s.Clock.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoPassword
	}
	return s.reload(ctx, id)
}

func (s *AuthService) ListCustomers(ctx context.Context) ([]domain.Profile, error) {
	cs, err := s.Customers.List(ctx, 500)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Profile, 0, len(cs))
	for i := range cs {
		out = append(out, cs[i].Profile())
	}
	return out, nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
