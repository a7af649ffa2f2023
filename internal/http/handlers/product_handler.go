package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	applog "beanstore/internal/log"
	"beanstore/internal/repos"
	"beanstore/internal/services"
	"beanstore/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
	Admin   *services.AdminCatalogService
}

// GET /api/products?active_only=&category=
func (h *ProductHandler) List(c *fiber.Ctx) error {
	f := repos.ProductFilter{ActiveOnly: validate.Bool(c.Query("active_only"), true)}
	if cat := c.Query("category"); cat != "" {
		id, valid := validate.ID(cat)
		if !valid {
			return fail(c, "products.list", apperr.Validation("分類格式錯誤"))
		}
		f.CategoryID = id
	}
	ps, err := h.Catalog.ListProducts(c.UserContext(), f)
	if err != nil {
		return fail(c, "products.list", err)
	}
	return ok(c, ps)
}

// GET /api/products/:id
func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return fail(c, "products.get", apperr.NotFound("找不到商品"))
	}
	cust := currentCustomer(c)
	d, err := h.Catalog.GetProduct(c.UserContext(), id, cust != nil && cust.IsAdmin())
	if err != nil {
		return fail(c, "products.get", err)
	}
	return ok(c, d)
}

// POST /api/products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "products.create", err)
	}
	p, err := h.Admin.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, "products.create", err)
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "name": p.Name})
	return created(c, p)
}

// PUT /api/products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return fail(c, "products.update", apperr.NotFound("找不到商品"))
	}
	var in services.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "products.update", err)
	}
	p, err := h.Admin.Update(c.UserContext(), id, in)
	if err != nil {
		return fail(c, "products.update", err)
	}
	applog.Audit(c, "admin.products.update", map[string]any{"product_id": p.ID, "active": p.IsActive})
	return ok(c, p)
}
