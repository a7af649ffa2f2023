// Package web holds the embedded page templates.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	html "github.com/gofiber/template/html/v2"

	"beanstore/internal/domain"
	"beanstore/internal/format"
)

//go:embed templates/*.html
var files embed.FS

// Engine returns the template engine for the embedded pages with the display
// helpers registered.
func Engine() *html.Engine {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFuncMap(map[string]any{
		"money":   format.Currency,
		"status":  format.OrderStatus,
		"pickup":  format.PickupMethod,
		"payment": format.PaymentMethod,
		"grind":   format.GrindOption,
		"phone":   format.Phone,
		"date":    format.Date,
		"next":    domain.NextStatuses,
	})
	return engine
}
