// Package http assembles the fiber application: middleware, routes and the
// fallback error handler.
package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"beanstore/internal/config"
	"beanstore/internal/http/handlers"
	applog "beanstore/internal/log"
	"beanstore/web"
)

// Limits are the rate limits per client IP. Zero values use the defaults.
type Limits struct {
	Global     int
	OTPRequest int
	Login      int
}

func (l Limits) withDefaults() Limits {
	if l.Global == 0 {
		l.Global = 120
	}
	if l.OTPRequest == 0 {
		l.OTPRequest = 3
	}
	if l.Login == 0 {
		l.Login = 10
	}
	return l
}

type Options struct {
	Limits Limits
	// AccessLog disables the fiber access logger when false.
	AccessLog bool
}

// errorHandler answers anything a handler returned unhandled, including
// recovered panics, with the 500 envelope. fiber errors keep their code.
func errorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code != fiber.StatusInternalServerError {
			return c.Status(fe.Code).JSON(handlers.Result[struct{}]{Error: fe.Message})
		}
		applog.Error(c, "server.error", err, nil)
		res := handlers.Result[struct{}]{Error: "伺服器發生錯誤，請稍後再試"}
		if debug {
			res.Debug = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}
}

func limitReached(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		applog.Security(c, action, nil)
		return c.Status(fiber.StatusTooManyRequests).JSON(handlers.Result[struct{}]{Error: "請求過於頻繁，請稍後再試"})
	}
}

func NewApp(cfg config.Config, deps *handlers.Deps, opt Options) *fiber.App {
	lim := opt.Limits.withDefaults()

	app := fiber.New(fiber.Config{
		Views:        web.Engine(),
		ErrorHandler: errorHandler(cfg.Debug),
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	if opt.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: `{"ts":"${time}","req_id":"${locals:requestid}","status":${status},"latency":"${latency}","method":"${method}","path":"${path}"}` + "\n",
			TimeFormat: time.RFC3339,
			Output:     applog.Writer(),
		}))
	}
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:          lim.Global,
		Expiration:   time.Minute,
		LimitReached: limitReached("rate.global.hit"),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(handlers.LocalDebug, cfg.Debug)
		return c.Next()
	})
	app.Use(handlers.Identify(deps.Sessions, deps.Auth))

	// ---------- JSON API ----------
	api := app.Group("/api")
	api.Get("/categories", deps.CategoryHandler.List)
	api.Get("/products", deps.ProductHandler.List)
	api.Get("/products/:id", deps.ProductHandler.Get)
	api.Post("/products", handlers.RequireAdmin(), deps.ProductHandler.Create)
	api.Put("/products/:id", handlers.RequireAdmin(), deps.ProductHandler.Update)

	api.Post("/orders", deps.OrderHandler.Create)
	api.Get("/orders/mine", handlers.RequireCustomer(), deps.OrderHandler.Mine)
	api.Get("/orders/order-id/:orderId", deps.OrderHandler.ByID)
	api.Get("/orders/code/:orderCode", deps.OrderHandler.ByCode)

	auth := api.Group("/auth")
	loginLimiter := limiter.New(limiter.Config{
		Max:          lim.Login,
		Expiration:   10 * time.Minute,
		LimitReached: limitReached("rate.login.hit"),
	})
	auth.Post("/register", loginLimiter, deps.AuthHandler.Register)
	auth.Post("/login", loginLimiter, deps.AuthHandler.Login)
	auth.Post("/otp/request", limiter.New(limiter.Config{
		Max:        lim.OTPRequest,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|otp"
		},
		LimitReached: limitReached("rate.otp.hit"),
	}), deps.AuthHandler.RequestOTP)
	auth.Post("/otp/verify", loginLimiter, deps.AuthHandler.VerifyOTP)
	auth.Post("/google", loginLimiter, deps.AuthHandler.Google)
	auth.Post("/logout", deps.AuthHandler.Logout)
	auth.Get("/me", handlers.RequireCustomer(), deps.AuthHandler.Me)
	auth.Put("/profile", handlers.RequireCustomer(), deps.AuthHandler.UpdateProfile)
	auth.Post("/password", handlers.RequireCustomer(), deps.AuthHandler.SetPassword)
	auth.Post("/unlink-google", handlers.RequireCustomer(), deps.AuthHandler.UnlinkGoogle)

	admin := api.Group("/admin", handlers.RequireAdmin())
	admin.Get("/products/:id", deps.AdminHandler.ProductDetail)
	admin.Put("/products/:id/images", deps.AdminHandler.ReplaceImages)
	admin.Put("/products/:id/variants", deps.AdminHandler.ReplaceVariants)
	admin.Get("/orders", deps.AdminHandler.ListOrders)
	admin.Patch("/orders/:id/status", deps.AdminHandler.UpdateOrderStatus)
	admin.Get("/customers", deps.AdminHandler.Customers)
	admin.Get("/inventory", deps.InventoryHandler.Report)

	api.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(handlers.Result[struct{}]{Error: "找不到資源"})
	})

	// ---------- Pages ----------
	csrfGuard := csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"err": err.Error()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "安全性驗證失敗，請重新整理後再試"})
		},
	})
	app.Get("/track", csrfGuard, deps.PageHandler.Track)
	board := app.Group("/admin/board", csrfGuard, handlers.RequireAdminPage())
	board.Get("", deps.PageHandler.Board)
	board.Post("/:id/status", deps.PageHandler.BoardUpdate)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "找不到頁面"})
	})
	return app
}
