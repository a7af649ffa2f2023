package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"beanstore/internal/apperr"
	"beanstore/internal/domain"
	"beanstore/internal/events"
	"beanstore/internal/format"
	applog "beanstore/internal/log"
	"beanstore/internal/mail"
	"beanstore/internal/otp"
	"beanstore/internal/repos"
	"beanstore/internal/validate"
)

const (
	maxOrderLines = 30
	maxNoteLen    = 500
	codeAttempts  = 5
)

type CheckoutItem struct {
	ProductID   string  `json:"product_id"`
	VariantID   *string `json:"variant_id"`
	Quantity    int     `json:"quantity"`
	GrindOption string  `json:"grind_option"`
}

// CheckoutInput is what the buyer submits. Prices and totals are never taken
// from the client.
type CheckoutInput struct {
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
	CustomerEmail string         `json:"customer_email"`
	PickupMethod  string         `json:"pickup_method"`
	PaymentMethod string         `json:"payment_method"`
	Note          string         `json:"note"`
	Items         []CheckoutItem `json:"items"`
}

type OrderService struct {
	Orders   *repos.OrderRepo
	Prods    *repos.ProductRepo
	Inv      *repos.InventoryRepo
	Mail     mail.Sender
	Events   events.Publisher
	Discount domain.Discount
	Clock    clock
}

func NewOrderService(orders *repos.OrderRepo, prods *repos.ProductRepo, inv *repos.InventoryRepo, sender mail.Sender, pub events.Publisher, discount domain.Discount) *OrderService {
	return &OrderService{Orders: orders, Prods: prods, Inv: inv, Mail: sender, Events: pub, Discount: discount}
}

func (s *OrderService) header(in CheckoutInput) (domain.Order, error) {
	var o domain.Order
	name, ok := validate.Name(in.CustomerName, maxNameLen)
	if !ok {
		return o, apperr.Validation("請輸入訂購人姓名")
	}
	phone, ok := validate.Phone(in.CustomerPhone)
	if !ok {
		return o, apperr.Validation("手機號碼格式錯誤")
	}
	email := ""
	if strings.TrimSpace(in.CustomerEmail) != "" {
		if email, ok = validate.Email(in.CustomerEmail); !ok {
			return o, apperr.Validation("電子郵件格式錯誤")
		}
	}
	pickup, err := domain.ParsePickupMethod(in.PickupMethod)
	if err != nil {
		return o, err
	}
	payment, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return o, err
	}
	note := strings.TrimSpace(in.Note)
	if len([]rune(note)) > maxNoteLen {
		return o, apperr.Validation("備註過長")
	}
	o.CustomerName = name
	o.CustomerPhone = phone
	o.CustomerEmail = email
	o.PickupMethod = pickup
	o.PaymentMethod = payment
	o.Note = note
	return o, nil
}

// line prices one checkout line from the catalog.
func (s *OrderService) line(ctx context.Context, in CheckoutItem) (domain.OrderItem, error) {
	d, err := s.Prods.Detail(ctx, strings.TrimSpace(in.ProductID))
	if err != nil {
		return domain.OrderItem{}, notFound(err, "商品不存在")
	}
	if !d.IsActive {
		return domain.OrderItem{}, apperr.Validation(fmt.Sprintf("商品已下架：%s", d.Name))
	}
	grind, err := domain.ParseGrindOption(in.GrindOption)
	if err != nil {
		return domain.OrderItem{}, err
	}

	name, price := d.Name, d.Price
	var variantID *string
	switch {
	case in.VariantID != nil && *in.VariantID != "":
		v, err := s.Prods.Variant(ctx, d.ID, strings.TrimSpace(*in.VariantID))
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !v.IsActive) {
			return domain.OrderItem{}, apperr.Validation(fmt.Sprintf("商品規格不存在：%s", d.Name))
		}
		if err != nil {
			return domain.OrderItem{}, err
		}
		id := v.ID
		variantID = &id
		price = v.Price
		name = variantName(d, v)
	case len(d.Variants) > 0:
		return domain.OrderItem{}, apperr.Validation(fmt.Sprintf("請選擇商品規格：%s", d.Name))
	}

	it, err := domain.NewOrderItem(d.ID, variantID, name, price, in.Quantity, grind)
	if err != nil {
		return domain.OrderItem{}, err
	}
	it.ID = uuid.NewString()
	return it, nil
}

// variantName appends the chosen values in option order, e.g. "耶加雪菲 (淺焙 / 250g)".
func variantName(d domain.ProductDetail, v domain.ProductVariant) string {
	parts := make([]string, 0, len(d.Options))
	for _, o := range d.Options {
		if val, ok := v.OptionValues[o.Name]; ok {
			parts = append(parts, val)
		}
	}
	if len(parts) == 0 {
		return d.Name
	}
	return d.Name + " (" + strings.Join(parts, " / ") + ")"
}

func (s *OrderService) newCode(ctx context.Context, q sqlx.QueryerContext, o *domain.Order) error {
	for i := 0; i < codeAttempts; i++ {
		suffix, err := otp.Digits(6)
		if err != nil {
			return err
		}
		code := "CB" + format.CompactDate(o.CreatedAt) + "-" + suffix
		taken, err := s.Orders.CodeTaken(ctx, q, code)
		if err != nil {
			return err
		}
		if !taken {
			o.OrderCode = code
			return nil
		}
	}
	return errors.New("order code space exhausted")
}

// Checkout prices the items from the catalog, reserves stock and stores the
// order in one transaction. customerID is nil for guest checkout.
func (s *OrderService) Checkout(ctx context.Context, customerID *string, in CheckoutInput) (domain.Order, error) {
	o, err := s.header(in)
	if err != nil {
		return domain.Order{}, err
	}
	if len(in.Items) == 0 {
		return domain.Order{}, apperr.Validation("購物清單是空的")
	}
	if len(in.Items) > maxOrderLines {
		return domain.Order{}, apperr.Validation(fmt.Sprintf("單筆訂單最多 %d 項商品", maxOrderLines))
	}
	for _, ci := range in.Items {
		it, err := s.line(ctx, ci)
		if err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}

	now := s.Clock.now()
	o.ID = uuid.NewString()
	o.CustomerID = customerID
	o.Status = domain.StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now
	o.PriceItems(s.Discount)
	if err := o.CheckAmounts(); err != nil {
		return domain.Order{}, fmt.Errorf("checkout: %w", err)
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	err = s.Orders.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range o.Items {
			err := s.Inv.Decrement(ctx, tx, repos.StockLine{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Quantity})
			var short repos.ErrInsufficientStock
			if errors.As(err, &short) {
				return apperr.Validation(fmt.Sprintf("庫存不足：%s", it.ProductName))
			}
			if err != nil {
				return err
			}
		}
		if err := s.newCode(ctx, tx, &o); err != nil {
			return err
		}
		if err := s.Orders.Insert(ctx, tx, &o); err != nil {
			return err
		}
		if customerID != nil {
			return s.Orders.RefreshCustomerStats(ctx, tx, *customerID, now)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.receipt(ctx, o)
	s.publish(ctx, events.Placed(o))
	return o, nil
}

// receipt mails the order confirmation. Failures are logged, never returned:
// the order already exists.
func (s *OrderService) receipt(ctx context.Context, o domain.Order) {
	if s.Mail == nil {
		return
	}
	if err := s.Mail.SendOrderPlaced(ctx, o); err != nil {
		applog.Logger().Warn().Err(err).Str("action", "order.receipt").Str("order_code", o.OrderCode).Msg("receipt not sent")
	}
}

func (s *OrderService) publish(ctx context.Context, e events.OrderEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		applog.Logger().Warn().Err(err).Str("action", "order.event").Str("order_id", e.OrderID).
			Str("type", string(e.Type)).Msg("event not published")
	}
}

func (s *OrderService) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, notFound(err, "找不到訂單")
	}
	return o, nil
}

// GetByCode is the guest lookup. A wrong phone number looks exactly like an
// unknown code.
func (s *OrderService) GetByCode(ctx context.Context, code, phone string) (domain.Order, error) {
	code, ok := validate.OrderCode(code)
	if !ok {
		return domain.Order{}, apperr.NotFound("找不到訂單")
	}
	phone, ok = validate.Phone(phone)
	if !ok {
		return domain.Order{}, apperr.NotFound("找不到訂單")
	}
	o, err := s.Orders.ByCode(ctx, code)
	if err != nil {
		return domain.Order{}, notFound(err, "找不到訂單")
	}
	if o.CustomerPhone != phone {
		return domain.Order{}, apperr.NotFound("找不到訂單")
	}
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.Orders.ListByCustomer(ctx, customerID)
}

// ListAdmin lists the latest orders; an empty status means all.
func (s *OrderService) ListAdmin(ctx context.Context, status string) ([]domain.Order, error) {
	if strings.TrimSpace(status) == "" {
		return s.Orders.List(ctx, nil, 200)
	}
	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.Orders.List(ctx, &st, 200)
}

// UpdateStatus moves an order along the status graph. Cancelling gives the
// reserved stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (domain.Order, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	now := s.Clock.now()
	var (
		from    domain.OrderStatus
		updated domain.Order
	)
	err = s.Orders.WithTx(ctx, func(tx *sqlx.Tx) error {
		o, err := s.Orders.GetTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "找不到訂單")
		}
		from = o.Status
		if err := domain.CheckTransition(from, to); err != nil {
			return err
		}
		ok, err := s.Orders.UpdateStatus(ctx, tx, id, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidTransition("訂單狀態已被更新，請重新整理")
		}
		if from.HoldsStock() && !to.HoldsStock() {
			for _, it := range o.Items {
				err := s.Inv.Restore(ctx, tx, repos.StockLine{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Quantity})
				var gone repos.ErrStockLineGone
				if errors.As(err, &gone) {
					applog.Logger().Warn().Err(err).Str("action", "order.restore").Str("order_id", o.ID).Msg("stock not restored")
					continue
				}
				if err != nil {
					return err
				}
			}
		}
		if o.CustomerID != nil {
			if err := s.Orders.RefreshCustomerStats(ctx, tx, *o.CustomerID, now); err != nil {
				return err
			}
		}
		updated, err = s.Orders.GetTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.publish(ctx, events.StatusChanged(updated, from))
	return updated, nil
}
