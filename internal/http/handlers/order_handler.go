package handlers

import (
	"github.com/gofiber/fiber/v2"

	"beanstore/internal/apperr"
	applog "beanstore/internal/log"
	"beanstore/internal/services"
	"beanstore/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// POST /api/orders places an order as a guest or as the signed-in customer.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in services.CheckoutInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "orders.create", err)
	}
	var customerID *string
	if cust := currentCustomer(c); cust != nil {
		customerID = &cust.ID
	}
	o, err := h.Orders.Checkout(c.UserContext(), customerID, in)
	if err != nil {
		return fail(c, "orders.create", err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id":   o.ID,
		"order_code": o.OrderCode,
		"total":      o.TotalAmount.String(),
		"discount":   o.DiscountAmount.String(),
		"final":      o.FinalAmount.String(),
		"guest":      customerID == nil,
	})
	return created(c, o)
}

// GET /api/orders/order-id/:orderId
func (h *OrderHandler) ByID(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("orderId"))
	if !valid {
		return fail(c, "orders.get", apperr.NotFound("找不到訂單"))
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "orders.get", err)
	}
	return ok(c, o)
}

// GET /api/orders/code/:orderCode?phone=
func (h *OrderHandler) ByCode(c *fiber.Ctx) error {
	o, err := h.Orders.GetByCode(c.UserContext(), c.Params("orderCode"), c.Query("phone"))
	if err != nil {
		return fail(c, "orders.track", err)
	}
	return ok(c, o)
}

// GET /api/orders/mine
func (h *OrderHandler) Mine(c *fiber.Ctx) error {
	list, err := h.Orders.ListMine(c.UserContext(), currentCustomer(c).ID)
	if err != nil {
		return fail(c, "orders.mine", err)
	}
	return ok(c, list)
}
