package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	applog "beanstore/internal/log"
)

// Result is the body of every JSON response.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Debug   string `json:"debug,omitempty"`
}

// LocalDebug is set by the server when error detail may be exposed.
const LocalDebug = "debug"

func ok[T any](c *fiber.Ctx, data T) error {
	return c.JSON(Result[T]{Success: true, Data: &data})
}

func created[T any](c *fiber.Ctx, data T) error {
	return c.Status(fiber.StatusCreated).JSON(Result[T]{Success: true, Data: &data})
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(Result[struct{}]{Success: true, Message: msg})
}

func badRequest(c *fiber.Ctx, action string, err error) error {
	applog.Security(c, "validation.fail", map[string]any{"action": action, "reason": "bad_body"})
	return c.Status(fiber.StatusBadRequest).JSON(Result[struct{}]{Error: "請求格式錯誤"})
}

// fail writes the error envelope for err. Internal errors are logged in full
// and answered with a generic message; detail goes to debug only when enabled.
func fail(c *fiber.Ctx, action string, err error) error {
	kind := apperr.KindOf(err)
	res := Result[struct{}]{Error: apperr.PublicMessage(err)}
	switch kind {
	case apperr.KindInternal:
		applog.Error(c, action, err, nil)
		if on, _ := c.Locals(LocalDebug).(bool); on {
			res.Debug = err.Error()
		}
	case apperr.KindValidation:
		applog.Security(c, "validation.fail", map[string]any{"action": action, "reason": res.Error})
	case apperr.KindUnauthorized, apperr.KindForbidden:
		applog.Security(c, action+".denied", map[string]any{"reason": res.Error})
	case apperr.KindNotFound, apperr.KindInvalidTransition:
		applog.Info(c, action+".rejected", map[string]any{"kind": kind.String(), "reason": res.Error})
	}
	return c.Status(kind.Status()).JSON(res)
}
