// Package log writes one JSON line per application event.
//
// Events are tagged with a level that doubles as a category: info for routine
// actions, audit for state changes worth keeping, warn for security-relevant
// rejections and error for failures.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	logger           = newLogger(os.Stdout)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "ts"
	zerolog.ErrorFieldName = "err"
}

// SetOutput redirects all subsequent events to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = newLogger(w).Level(logger.GetLevel())
}

// Writer returns the current output, for access logs that share the stream.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return out
}

// SetLevel accepts zerolog level names; unknown names leave the level unchanged.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(lvl)
}

// Logger returns the current logger for code without a request context.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func write(level zerolog.Level, category string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	ev = ev.Str("category", category).Str("action", action)
	if c != nil {
		ev = ev.Str("ip", c.IP()).Str("method", c.Method()).Str("path", c.Path())
		if st := c.Response().StatusCode(); st != 0 {
			ev = ev.Int("status", st)
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ev = ev.Str("req_id", rid)
		}
		if cid, ok := c.Locals("customer_id").(string); ok && cid != "" {
			ev = ev.Str("customer_id", cid)
		}
	}
	if err != nil {
		ev = ev.Err(err)
	}
	if len(fields) > 0 {
		ev = ev.Interface("fields", fields)
	}
	ev.Send()
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	write(zerolog.InfoLevel, "info", c, action, nil, fields)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write(zerolog.InfoLevel, "audit", c, action, nil, fields)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write(zerolog.WarnLevel, "security", c, action, nil, fields)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write(zerolog.ErrorLevel, "error", c, action, err, fields)
}
