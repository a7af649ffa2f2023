// Package format turns domain values into the strings shown to shoppers and staff.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"beanstore/internal/domain"
)

// Taipei has no DST, so a fixed zone avoids depending on tzdata.
var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

func PickupMethod(m domain.PickupMethod) string {
	switch m {
	case domain.PickupInStore:
		return "門市自取"
	case domain.PickupHomeDelivery:
		return "宅配到府"
	case domain.PickupConvenienceStore:
		return "超商取貨"
	}
	return string(m)
}

func PaymentMethod(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentCash:
		return "現金付款"
	case domain.PaymentBankTransfer:
		return "銀行轉帳"
	case domain.PaymentLinePay:
		return "LINE Pay"
	}
	return string(m)
}

func OrderStatus(s domain.OrderStatus) string {
	switch s {
	case domain.StatusPending:
		return "待處理"
	case domain.StatusProcessing:
		return "處理中"
	case domain.StatusCompleted:
		return "已完成"
	case domain.StatusPickedUp:
		return "已取貨"
	case domain.StatusCancelled:
		return "已取消"
	}
	return string(s)
}

func GrindOption(g domain.GrindOption) string {
	switch g {
	case domain.GrindNone:
		return "不研磨（原豆）"
	case domain.GrindHandDrip:
		return "手沖研磨"
	case domain.GrindEspresso:
		return "義式研磨"
	}
	return string(g)
}

// Currency renders an amount as whole New Taiwan dollars, e.g. NT$1,280.
func Currency(d decimal.Decimal) string {
	s := d.Round(0).Abs().StringFixed(0)
	var b strings.Builder
	if d.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("NT$")
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Phone groups a 10-digit mobile number as 0912-345-678.
// Anything else is returned trimmed but otherwise untouched.
func Phone(p string) string {
	p = strings.TrimSpace(p)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p)
	if len(digits) == 10 && strings.HasPrefix(digits, "09") {
		return digits[:4] + "-" + digits[4:7] + "-" + digits[7:]
	}
	return p
}

// Date renders t in Taiwan local time.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(taipei).Format("2006/01/02 15:04")
}

// DateOnly is Date without the clock.
func DateOnly(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(taipei).Format("2006/01/02")
}

// CompactDate is the yyyymmdd day of t in Taiwan, as used in order codes.
func CompactDate(t time.Time) string {
	return t.In(taipei).Format("20060102")
}
