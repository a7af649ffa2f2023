package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"beanstore/internal/apperr"
)

const (
	MinItemQuantity = 1
	MaxItemQuantity = 99
)

type Order struct {
	ID             string          `db:"id" json:"id"`
	OrderCode      string          `db:"order_code" json:"order_code"`
	CustomerID     *string         `db:"customer_id" json:"customer_id"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone"`
	CustomerEmail  string          `db:"customer_email" json:"customer_email"`
	PickupMethod   PickupMethod    `db:"pickup_method" json:"pickup_method"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"payment_method"`
	Note           string          `db:"note" json:"note"`
	Items          []OrderItem     `db:"-" json:"items"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	FinalAmount    decimal.Decimal `db:"final_amount" json:"final_amount"`
	Status         OrderStatus     `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type OrderItem struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"-"`
	ProductID   string          `db:"product_id" json:"product_id"`
	VariantID   *string         `db:"variant_id" json:"variant_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	GrindOption GrindOption     `db:"grind_option" json:"grind_option"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// NewOrderItem captures name and price at order time and derives the subtotal.
func NewOrderItem(productID string, variantID *string, name string, unitPrice decimal.Decimal, qty int, grind GrindOption) (OrderItem, error) {
	if qty < MinItemQuantity || qty > MaxItemQuantity {
		return OrderItem{}, apperr.Validation(fmt.Sprintf("數量必須介於 %d 到 %d", MinItemQuantity, MaxItemQuantity))
	}
	if unitPrice.IsNegative() {
		return OrderItem{}, apperr.Validation("單價不可為負數")
	}
	return OrderItem{
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: name,
		UnitPrice:   unitPrice,
		Quantity:    qty,
		GrindOption: grind,
		Subtotal:    unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}, nil
}

// Discount is a flat amount off once the total reaches the threshold.
// A zero amount disables it.
type Discount struct {
	Threshold decimal.Decimal
	Amount    decimal.Decimal
}

func (d Discount) Enabled() bool { return d.Amount.IsPositive() }

// For returns the discount for a given total, never more than the total itself.
func (d Discount) For(total decimal.Decimal) decimal.Decimal {
	if !d.Enabled() || total.LessThan(d.Threshold) {
		return decimal.Zero
	}
	return decimal.Min(d.Amount, total)
}

// PriceItems sets the order totals from its items and the discount policy.
func (o *Order) PriceItems(d Discount) {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	o.TotalAmount = total
	o.DiscountAmount = d.For(total)
	o.FinalAmount = total.Sub(o.DiscountAmount)
}

// CheckAmounts verifies the amount invariants of an order and its items.
func (o *Order) CheckAmounts() error {
	sum := decimal.Zero
	for i, it := range o.Items {
		want := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if !it.Subtotal.Equal(want) {
			return fmt.Errorf("item %d: subtotal %s != %d x %s", i, it.Subtotal, it.Quantity, it.UnitPrice)
		}
		sum = sum.Add(it.Subtotal)
	}
	if len(o.Items) > 0 && !sum.Equal(o.TotalAmount) {
		return fmt.Errorf("total %s != sum of items %s", o.TotalAmount, sum)
	}
	if o.DiscountAmount.IsNegative() || o.DiscountAmount.GreaterThan(o.TotalAmount) {
		return fmt.Errorf("discount %s out of range for total %s", o.DiscountAmount, o.TotalAmount)
	}
	if !o.FinalAmount.Equal(o.TotalAmount.Sub(o.DiscountAmount)) {
		return fmt.Errorf("final %s != total %s - discount %s", o.FinalAmount, o.TotalAmount, o.DiscountAmount)
	}
	return nil
}

// CanTransition reports whether an order may move from one status to another.
//
//	pending    -> processing | cancelled
//	processing -> completed  | cancelled
//	completed  -> picked_up
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted:
		return to == StatusPickedUp
	case StatusPickedUp, StatusCancelled:
		return false
	}
	return false
}

// NextStatuses lists the statuses reachable from s in one step.
func NextStatuses(s OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, to := range orderStatuses {
		if CanTransition(s, to) {
			out = append(out, to)
		}
	}
	return out
}

// CheckTransition is CanTransition as an error.
func CheckTransition(from, to OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return apperr.InvalidTransition(fmt.Sprintf("訂單狀態無法從 %s 變更為 %s", from, to))
}
