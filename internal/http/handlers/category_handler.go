package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/services"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// GET /api/categories
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return fail(c, "categories.list", err)
	}
	return ok(c, cats)
}
