package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	GrindOption GrindOption     `db:"grind_option" json:"grind_option"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CategoryID  *string         `db:"category_id" json:"category_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type ProductImage struct {
	ID        string `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"-"`
	URL       string `db:"url" json:"url"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
	IsCover   bool   `db:"is_cover" json:"is_cover"`
}

// ProductOption is a named axis such as "roast" with its ordered values.
type ProductOption struct {
	ProductID string     `db:"product_id" json:"-"`
	Name      string     `db:"name" json:"name"`
	Position  int        `db:"position" json:"-"`
	Values    StringList `db:"values_json" json:"values"`
}

type ProductVariant struct {
	ID           string          `db:"id" json:"id"`
	ProductID    string          `db:"product_id" json:"-"`
	OptionValues OptionValues    `db:"options_json" json:"option_values"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Stock        int             `db:"stock" json:"stock"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	SKU          *string         `db:"sku" json:"sku"`
}

// ProductDetail is the admin view of a product.
type ProductDetail struct {
	Product
	Images   []ProductImage   `json:"images"`
	Options  []ProductOption  `json:"options"`
	Variants []ProductVariant `json:"variants"`
}

// Cover returns the cover image, if any.
func (d *ProductDetail) Cover() *ProductImage {
	for i := range d.Images {
		if d.Images[i].IsCover {
			return &d.Images[i]
		}
	}
	return nil
}

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	return scanJSON(src, (*[]string)(l))
}

// OptionValues maps option name to the chosen value, stored as a JSON object column.
type OptionValues map[string]string

func (o OptionValues) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(o))
	return string(b), err
}

func (o *OptionValues) Scan(src any) error {
	return scanJSON(src, (*map[string]string)(o))
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		return json.Unmarshal(v, dst)
	}
	return fmt.Errorf("domain: cannot scan %T into json column", src)
}
