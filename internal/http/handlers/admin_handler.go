package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	applog "beanstore/internal/log"
	"beanstore/internal/services"
	"beanstore/internal/validate"
)

type AdminHandler struct {
	Catalog *services.AdminCatalogService
	Orders  *services.OrderService
	Auth    *services.AuthService
}

type imagesBody struct {
	Images []services.ImageInput `json:"images"`
}

type variantsBody struct {
	Options  []domain.ProductOption  `json:"options"`
	Variants []services.VariantInput `json:"variants"`
}

type statusBody struct {
	Status string `json:"status"`
}

func productID(c *fiber.Ctx) (string, error) {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return "", apperr.NotFound("找不到商品")
	}
	return id, nil
}

// GET /api/admin/products/:id
func (h *AdminHandler) ProductDetail(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return fail(c, "admin.products.detail", err)
	}
	d, err := h.Catalog.Detail(c.UserContext(), id)
	if err != nil {
		return fail(c, "admin.products.detail", err)
	}
	return ok(c, d)
}

// PUT /api/admin/products/:id/images
func (h *AdminHandler) ReplaceImages(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return fail(c, "admin.products.images", err)
	}
	var in imagesBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "admin.products.images", err)
	}
	d, err := h.Catalog.ReplaceImages(c.UserContext(), id, in.Images)
	if err != nil {
		return fail(c, "admin.products.images", err)
	}
	applog.Audit(c, "admin.products.images", map[string]any{"product_id": id, "count": len(d.Images)})
	return ok(c, d)
}

// PUT /api/admin/products/:id/variants
func (h *AdminHandler) ReplaceVariants(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return fail(c, "admin.products.variants", err)
	}
	var in variantsBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "admin.products.variants", err)
	}
	d, err := h.Catalog.ReplaceVariants(c.UserContext(), id, in.Options, in.Variants)
	if err != nil {
		return fail(c, "admin.products.variants", err)
	}
	applog.Audit(c, "admin.products.variants", map[string]any{
		"product_id": id, "options": len(d.Options), "variants": len(d.Variants),
	})
	return ok(c, d)
}

// GET /api/admin/orders?status=
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	list, err := h.Orders.ListAdmin(c.UserContext(), c.Query("status"))
	if err != nil {
		return fail(c, "admin.orders.list", err)
	}
	return ok(c, list)
}

// PATCH /api/admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return fail(c, "admin.orders.status", apperr.NotFound("找不到訂單"))
	}
	var in statusBody
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "admin.orders.status", err)
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), id, in.Status)
	if err != nil {
		return fail(c, "admin.orders.status", err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": o.Status})
	return ok(c, o)
}

// GET /api/admin/customers
func (h *AdminHandler) Customers(c *fiber.Ctx) error {
	ps, err := h.Auth.ListCustomers(c.UserContext())
	if err != nil {
		return fail(c, "admin.customers.list", err)
	}
	return ok(c, ps)
}
