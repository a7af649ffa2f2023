package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	"beanstore/internal/services"
)

type InventoryHandler struct {
	Admin *services.AdminCatalogService
}

// GET /api/admin/inventory?max_stock= lists low stock lines, lowest first.
func (h *InventoryHandler) Report(c *fiber.Ctx) error {
	limit := -1
	if s := strings.TrimSpace(c.Query("max_stock")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return fail(c, "admin.inventory", apperr.Validation("max_stock 必須為非負整數"))
		}
		limit = n
	}
	rows, err := h.Admin.Inventory(c.UserContext(), limit)
	if err != nil {
		return fail(c, "admin.inventory", err)
	}
	return ok(c, rows)
}
