package handlers

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"beanstore/internal/config"
	"beanstore/internal/events"
	"beanstore/internal/mail"
	"beanstore/internal/oauth"
	"beanstore/internal/repos"
	"beanstore/internal/services"
	"beanstore/internal/session"
)

// Clients are the process-wide external clients built in main. Nil fields
// fall back to local defaults: SQL sessions, logged mail, no events.
type Clients struct {
	Sessions session.Store
	Mail     mail.Sender
	Google   oauth.Verifier
	Events   events.Publisher
}

type Deps struct {
	Sessions *session.Manager
	Auth     *services.AuthService
	Orders   *services.OrderService

	AuthHandler      *AuthHandler
	ProductHandler   *ProductHandler
	CategoryHandler  *CategoryHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
	InventoryHandler *InventoryHandler
	PageHandler      *PageHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, cl Clients) *Deps {
	if cl.Sessions == nil {
		cl.Sessions = repos.NewSessionRepo(db)
	}
	if cl.Mail == nil {
		cl.Mail = mail.LogSender{}
	}
	if cl.Events == nil {
		cl.Events = events.Nop{}
	}
	if cl.Google == nil && cfg.GoogleClientID != "" {
		cl.Google = oauth.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleTokenInfoURL, &http.Client{Timeout: 10 * time.Second})
	}

	custRepo := repos.NewCustomerRepo(db)
	otpRepo := repos.NewOTPRepo(db)
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	orderRepo := repos.NewOrderRepo(db)

	sm := session.NewManager(cl.Sessions, cfg.SessionTTL, cfg.CookieSecure)
	authSvc := services.NewAuthService(custRepo, otpRepo, cl.Mail, cl.Google)
	catalogSvc := services.NewCatalogService(catRepo, prodRepo)
	adminSvc := services.NewAdminCatalogService(catRepo, prodRepo, invRepo)
	orderSvc := services.NewOrderService(orderRepo, prodRepo, invRepo, cl.Mail, cl.Events, cfg.Discount)

	return &Deps{
		Sessions: sm,
		Auth:     authSvc,
		Orders:   orderSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc, Sessions: sm},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, Admin: adminSvc},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc},
		AdminHandler:     &AdminHandler{Catalog: adminSvc, Orders: orderSvc, Auth: authSvc},
		InventoryHandler: &InventoryHandler{Admin: adminSvc},
		PageHandler:      &PageHandler{Orders: orderSvc},
	}
}
