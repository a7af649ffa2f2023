package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/domain"
	applog "beanstore/internal/log"
	"beanstore/internal/services"
	"beanstore/internal/session"
)

type AuthHandler struct {
	Auth     *services.AuthService
	Sessions *session.Manager
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type googleBody struct {
	IDToken string `json:"id_token"`
}

type profileBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type passwordBody struct {
	Password string `json:"password"`
}

// signIn starts a session for cust and answers with the profile.
func (h *AuthHandler) signIn(c *fiber.Ctx, action string, cust *domain.Customer, status int) error {
	if _, err := h.Sessions.Login(c, cust.ID); err != nil {
		return fail(c, action, err)
	}
	c.Locals(localCustomerID, cust.ID)
	applog.Audit(c, action+".success", map[string]any{"email": cust.Email})
	if status == fiber.StatusCreated {
		return created(c, cust.Profile())
	}
	return ok(c, cust.Profile())
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.register", err)
	}
	cust, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	return h.signIn(c, "auth.register", cust, fiber.StatusCreated)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.login", err)
	}
	cust, err := h.Auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return fail(c, "auth.login", err)
	}
	return h.signIn(c, "auth.login", cust, fiber.StatusOK)
}

// POST /api/auth/otp/request
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var in otpBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.otp.request", err)
	}
	if err := h.Auth.RequestOTP(c.UserContext(), in.Email); err != nil {
		return fail(c, "auth.otp.request", err)
	}
	applog.Audit(c, "auth.otp.request", map[string]any{"email": in.Email})
	return message(c, "驗證碼已寄出")
}

// POST /api/auth/otp/verify
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var in otpBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.otp.verify", err)
	}
	cust, err := h.Auth.VerifyOTP(c.UserContext(), in.Email, in.Code)
	if err != nil {
		return fail(c, "auth.otp.verify", err)
	}
	return h.signIn(c, "auth.otp.verify", cust, fiber.StatusOK)
}

// POST /api/auth/google
func (h *AuthHandler) Google(c *fiber.Ctx) error {
	var in googleBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.google", err)
	}
	cust, err := h.Auth.GoogleLogin(c.UserContext(), in.IDToken)
	if err != nil {
		return fail(c, "auth.google", err)
	}
	return h.signIn(c, "auth.google", cust, fiber.StatusOK)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return ok(c, currentCustomer(c).Profile())
}

// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var in profileBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.profile", err)
	}
	cust, err := h.Auth.UpdateProfile(c.UserContext(), currentCustomer(c).ID, in.Name, in.Phone)
	if err != nil {
		return fail(c, "auth.profile", err)
	}
	applog.Audit(c, "auth.profile.update", nil)
	return ok(c, cust.Profile())
}

// POST /api/auth/password
func (h *AuthHandler) SetPassword(c *fiber.Ctx) error {
	var in passwordBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "auth.password", err)
	}
	cust, err := h.Auth.SetPassword(c.UserContext(), currentCustomer(c).ID, in.Password)
	if err != nil {
		return fail(c, "auth.password", err)
	}
	applog.Audit(c, "auth.password.set", map[string]any{"ended_sessions": h.endOtherSessions(c, cust.ID)})
	return ok(c, cust.Profile())
}

// POST /api/auth/unlink-google
func (h *AuthHandler) UnlinkGoogle(c *fiber.Ctx) error {
	cust, err := h.Auth.UnlinkGoogle(c.UserContext(), currentCustomer(c).ID)
	if err != nil {
		return fail(c, "auth.unlink_google", err)
	}
	applog.Audit(c, "auth.unlink_google", map[string]any{"ended_sessions": h.endOtherSessions(c, cust.ID)})
	return ok(c, cust.LinkState())
}

// endOtherSessions signs the customer out on other devices after a
// credential change. The change itself already succeeded, so a store error
// is only logged.
func (h *AuthHandler) endOtherSessions(c *fiber.Ctx, customerID string) int64 {
	n, err := h.Sessions.EndOtherSessions(c, customerID)
	if err != nil {
		applog.Error(c, "session.revoke.fail", err, nil)
	}
	return n
}

// POST /api/auth/logout always succeeds, with or without a session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.Sessions.Delete(c)
	applog.Audit(c, "auth.logout", nil)
	return message(c, "已登出")
}
