package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	applog "beanstore/internal/log"
	"beanstore/internal/services"
	"beanstore/internal/session"
)

const (
	localCustomer   = "customer"
	localCustomerID = "customer_id"
)

// Identify resolves the session cookie and stores the signed-in customer in
// Locals. It never rejects a request: when the session store or customer
// lookup fails the request continues anonymously and guarded routes answer
// 401 on their own.
func Identify(sm *session.Manager, auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, found, err := sm.Validate(c)
		if err != nil {
			applog.Error(c, "session.validate", err, nil)
			return c.Next()
		}
		if !found {
			return c.Next()
		}
		cust, err := auth.Me(c.UserContext(), id.CustomerID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				sm.Delete(c)
				return c.Next()
			}
			applog.Error(c, "session.customer", err, nil)
			return c.Next()
		}
		c.Locals(localCustomer, cust)
		c.Locals(localCustomerID, cust.ID)
		return c.Next()
	}
}

func currentCustomer(c *fiber.Ctx) *domain.Customer {
	cust, _ := c.Locals(localCustomer).(*domain.Customer)
	return cust
}

// RequireCustomer answers 401 unless Identify found a session.
func RequireCustomer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentCustomer(c) == nil {
			return fail(c, "access.customer", apperr.Unauthorized("請先登入"))
		}
		return c.Next()
	}
}

// RequireAdmin answers 401 without a session and 403 for non-admins.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cust := currentCustomer(c)
		if cust == nil {
			return fail(c, "access.admin", apperr.Unauthorized("請先登入"))
		}
		if !cust.IsAdmin() {
			return fail(c, "access.admin", apperr.Forbidden("權限不足"))
		}
		return c.Next()
	}
}

// RequireAdminPage is RequireAdmin for server-rendered pages.
func RequireAdminPage() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cust := currentCustomer(c)
		if cust == nil || !cust.IsAdmin() {
			applog.Security(c, "access.denied.admin", nil)
			status := fiber.StatusForbidden
			if cust == nil {
				status = fiber.StatusUnauthorized
			}
			return renderError(c, status, "權限不足")
		}
		return c.Next()
	}
}
