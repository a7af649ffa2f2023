// Package mail delivers customer notifications: sign-in codes and order receipts.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"

	"beanstore/internal/domain"
	"beanstore/internal/format"
	applog "beanstore/internal/log"
)

const shopName = "Beanstore 咖啡豆"

type Sender interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
	SendOrderPlaced(ctx context.Context, o domain.Order) error
}

// SMTPSender sends through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	if from == "" {
		from = user
	}
	return &SMTPSender{Host: host, Port: port, User: user, Password: password, From: from}
}

func (s *SMTPSender) send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", shopName, s.From)
	e.To = []string{to}
	e.Subject = subject
	e.HTML = []byte(html)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	done := make(chan error, 1)
	go func() { done <- e.Send(addr, auth) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: send to %s: %w", to, ctx.Err())
	}
}

func (s *SMTPSender) SendOTP(ctx context.Context, to, code string, ttl time.Duration) error {
	body, err := OTPBody(code, ttl)
	if err != nil {
		return err
	}
	return s.send(ctx, to, "您的登入驗證碼", body)
}

func (s *SMTPSender) SendOrderPlaced(ctx context.Context, o domain.Order) error {
	if o.CustomerEmail == "" {
		return nil
	}
	body, err := OrderBody(o)
	if err != nil {
		return err
	}
	return s.send(ctx, o.CustomerEmail, "訂單成立通知 "+o.OrderCode, body)
}

// LogSender writes messages to the application log instead of sending them.
// It is used when no SMTP host is configured.
type LogSender struct{}

// SendOTP logs the code itself only at debug level.
func (LogSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	l := applog.Logger()
	l.Info().Str("action", "mail.otp").Str("to", to).Dur("ttl", ttl).
		Msg("smtp not configured; code not sent")
	l.Debug().Str("action", "mail.otp.code").Str("to", to).Str("code", code).
		Msg("otp code for local testing")
	return nil
}

func (LogSender) SendOrderPlaced(_ context.Context, o domain.Order) error {
	applog.Logger().Info().Str("action", "mail.order_placed").Str("to", o.CustomerEmail).
		Str("order_code", o.OrderCode).Msg("smtp not configured; receipt skipped")
	return nil
}

var (
	otpTmpl = template.Must(template.New("otp").Parse(otpHTML))

	orderTmpl = template.Must(template.New("order").Funcs(template.FuncMap{
		"money":   format.Currency,
		"grind":   format.GrindOption,
		"pickup":  format.PickupMethod,
		"payment": format.PaymentMethod,
	}).Parse(orderHTML))
)

func OTPBody(code string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := otpTmpl.Execute(&buf, map[string]any{
		"Shop":    shopName,
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		return "", fmt.Errorf("mail: render otp: %w", err)
	}
	return buf.String(), nil
}

func OrderBody(o domain.Order) (string, error) {
	var buf bytes.Buffer
	if err := orderTmpl.Execute(&buf, map[string]any{"Shop": shopName, "O": o}); err != nil {
		return "", fmt.Errorf("mail: render order: %w", err)
	}
	return buf.String(), nil
}

const otpHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>登入驗證碼</title></head>
<body style="font-family:sans-serif;color:#333">
  <h2>{{.Shop}}</h2>
  <p>您的登入驗證碼為：</p>
  <p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
  <p>驗證碼將在 {{.Minutes}} 分鐘後失效。若非您本人操作，請忽略此郵件。</p>
</body></html>`

const orderHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>訂單成立通知</title></head>
<body style="font-family:sans-serif;color:#333">
  <h2>{{.Shop}}</h2>
  <p>{{.O.CustomerName}} 您好，感謝您的訂購！訂單編號 <b>{{.O.OrderCode}}</b></p>
  <table cellpadding="4">
    {{range .O.Items}}
    <tr><td>{{.ProductName}}</td><td>{{grind .GrindOption}}</td><td>x{{.Quantity}}</td><td>{{money .Subtotal}}</td></tr>
    {{end}}
  </table>
  <p>小計 {{money .O.TotalAmount}}{{if .O.DiscountAmount.IsPositive}}，折扣 -{{money .O.DiscountAmount}}{{end}}</p>
  <p><b>應付金額 {{money .O.FinalAmount}}</b></p>
  <p>取貨方式：{{pickup .O.PickupMethod}}　付款方式：{{payment .O.PaymentMethod}}</p>
</body></html>`
