package format_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"beanstore/internal/domain"
	"beanstore/internal/format"
)

func TestEnumLabelsCoverEveryValue(t *testing.T) {
	for _, m := range domain.PickupMethods() {
		assert.NotEqual(t, string(m), format.PickupMethod(m))
	}
	for _, m := range domain.PaymentMethods() {
		assert.NotEqual(t, string(m), format.PaymentMethod(m))
	}
	for _, s := range domain.OrderStatuses() {
		assert.NotEqual(t, string(s), format.OrderStatus(s))
	}
	for _, g := range domain.GrindOptions() {
		assert.NotEqual(t, string(g), format.GrindOption(g))
	}
	assert.Equal(t, "門市自取", format.PickupMethod(domain.PickupInStore))
	assert.Equal(t, "LINE Pay", format.PaymentMethod(domain.PaymentLinePay))
	assert.Equal(t, "unknown", format.OrderStatus("unknown"))
}

func TestCurrency(t *testing.T) {
	cases := map[string]string{
		"0":       "NT$0",
		"999":     "NT$999",
		"1000":    "NT$1,000",
		"1280.4":  "NT$1,280",
		"1234567": "NT$1,234,567",
		"-1500":   "-NT$1,500",
		"99.5":    "NT$100",
	}
	for in, want := range cases {
		assert.Equal(t, want, format.Currency(decimal.RequireFromString(in)), in)
	}
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "0912-345-678", format.Phone("0912345678"))
	assert.Equal(t, "0912-345-678", format.Phone(" 0912-345678 "))
	assert.Equal(t, "02-2345-6789", format.Phone("02-2345-6789"))
}

func TestDate(t *testing.T) {
	ts := time.Date(2025, 3, 1, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025/03/02 00:30", format.Date(ts))
	assert.Equal(t, "2025/03/02", format.DateOnly(ts))
	assert.Equal(t, "20250302", format.CompactDate(ts))
	assert.Equal(t, "", format.Date(time.Time{}))
}
