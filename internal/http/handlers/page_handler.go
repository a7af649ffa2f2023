package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	applog "beanstore/internal/log"
	"beanstore/internal/services"
	"beanstore/internal/validate"
)

// PageHandler serves the two server-rendered pages: guest order tracking and
// the admin order board.
type PageHandler struct {
	Orders *services.OrderService
}

// GET /track?code=&phone=
func (h *PageHandler) Track(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Query("code"))
	phone := strings.TrimSpace(c.Query("phone"))
	data := fiber.Map{"Code": code, "Phone": phone}
	if code == "" && phone == "" {
		return render(c, "track", data)
	}
	o, err := h.Orders.GetByCode(c.UserContext(), code, phone)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			data["Err"] = "查無此訂單，請確認訂單編號與手機號碼"
			c.Status(fiber.StatusNotFound)
			return render(c, "track", data)
		}
		applog.Error(c, "page.track", err, nil)
		return renderError(c, fiber.StatusInternalServerError, "系統忙碌中，請稍後再試")
	}
	data["Order"] = o
	return render(c, "track", data)
}

// GET /admin/board?status=
func (h *PageHandler) Board(c *fiber.Ctx) error {
	filter := c.Query("status")
	orders, err := h.Orders.ListAdmin(c.UserContext(), filter)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return renderError(c, fiber.StatusBadRequest, apperr.PublicMessage(err))
		}
		applog.Error(c, "admin.board.list.fail", err, nil)
		return renderError(c, fiber.StatusInternalServerError, "無法載入訂單")
	}
	return render(c, "admin_board", fiber.Map{
		"Orders":   orders,
		"Filter":   filter,
		"Statuses": domain.OrderStatuses(),
	})
}

// POST /admin/board/:id/status (form)
func (h *PageHandler) BoardUpdate(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		return renderError(c, fiber.StatusNotFound, "找不到訂單")
	}
	status := c.FormValue("status")
	o, err := h.Orders.UpdateStatus(c.UserContext(), id, status)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal {
			applog.Error(c, "admin.board.update.fail", err, map[string]any{"order_id": id})
		} else {
			applog.Security(c, "admin.board.update.rejected", map[string]any{"order_id": id, "status": status, "kind": kind.String()})
		}
		return renderError(c, kind.Status(), apperr.PublicMessage(err))
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": o.Status})
	return c.Redirect("/admin/board")
}
