package repos

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	applog "beanstore/internal/log"
)

// OpenDB connects with driver "sqlite" or "pgx", creates the schema if
// needed and seeds the demo catalog into an empty database.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := seedIfEmpty(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL,
  password_hash TEXT,
  auth_provider TEXT CHECK (auth_provider IN ('email','otp','google','facebook','line')),
  google_id TEXT,
  email_verified BOOLEAN NOT NULL DEFAULT FALSE,
  role TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('customer','admin')),
  last_login_at TIMESTAMP,
  order_count INTEGER NOT NULL DEFAULT 0,
  total_spent NUMERIC NOT NULL DEFAULT 0,
  last_order_at TIMESTAMP,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_email ON customers(LOWER(email))`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_google ON customers(google_id)`,

	`CREATE TABLE IF NOT EXISTS sessions(
  token TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
  created_at TIMESTAMP NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  expires_unix BIGINT NOT NULL DEFAULT 0,
  last_seen TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_customer ON sessions(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expires_unix)`,

	`CREATE TABLE IF NOT EXISTS otp_codes(
  email TEXT PRIMARY KEY,
  code_hash TEXT NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  grind_option TEXT NOT NULL DEFAULT 'none' CHECK (grind_option IN ('none','hand_drip','espresso')),
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_active ON products(is_active)`,

	`CREATE TABLE IF NOT EXISTS product_images(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  url TEXT NOT NULL,
  sort_order INTEGER NOT NULL,
  is_cover BOOLEAN NOT NULL DEFAULT FALSE
)`,
	`CREATE INDEX IF NOT EXISTS idx_product_images_product ON product_images(product_id)`,

	`CREATE TABLE IF NOT EXISTS product_options(
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  position INTEGER NOT NULL,
  values_json TEXT NOT NULL,
  PRIMARY KEY (product_id, name)
)`,

	`CREATE TABLE IF NOT EXISTS product_variants(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  options_json TEXT NOT NULL,
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  sku TEXT,
  position INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_product_variants_product ON product_variants(product_id)`,

	`CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  order_code TEXT NOT NULL,
  customer_id TEXT REFERENCES customers(id) ON DELETE SET NULL,
  customer_name TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  customer_email TEXT NOT NULL DEFAULT '',
  pickup_method TEXT NOT NULL CHECK (pickup_method IN ('in_store','home_delivery','convenience_store')),
  payment_method TEXT NOT NULL CHECK (payment_method IN ('cash','bank_transfer','line_pay')),
  note TEXT NOT NULL DEFAULT '',
  total_amount NUMERIC NOT NULL,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  final_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','completed','picked_up','cancelled')),
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_code ON orders(order_code)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,

	`CREATE TABLE IF NOT EXISTS order_items(
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id),
  variant_id TEXT,
  product_name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 99),
  grind_option TEXT NOT NULL DEFAULT 'none',
  subtotal NUMERIC NOT NULL,
  position INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
}

func ensureSchema(ctx context.Context, db *sqlx.DB) error {
	if db.DriverName() == "sqlite" {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			return err
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%.40s...: %w", stmt, err)
		}
	}
	return nil
}

type seedProduct struct {
	ID, Name, Desc, Price, Grind, Category string
	Stock                                  int
	Active                                 bool
}

// seedIfEmpty inserts the demo catalog once; a non-empty categories table means
// an operator has data already.
func seedIfEmpty(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Logger().Info().Str("action", "seed.catalog").Msg("inserting demo categories and products")

	now := time.Now().UTC()
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range [][2]string{
		{"single-origin", "單品豆"},
		{"blend", "配方豆"},
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO categories(id,name,created_at) VALUES(?,?,?)`), c[0], c[1], now); err != nil {
			return err
		}
	}

	products := []seedProduct{
		{"eth-yirgacheffe", "衣索比亞 耶加雪菲", "花香與柑橘調性，淺焙", "420", "none", "single-origin", 30, true},
		{"col-huila", "哥倫比亞 薇拉", "焦糖與堅果甜感，中焙", "380", "hand_drip", "single-origin", 25, true},
		{"house-espresso", "招牌義式配方", "可可與黑糖尾韻，深焙", "350", "espresso", "blend", 40, true},
		{"kenya-aa-2023", "肯亞 AA (2023 批次)", "已售完的舊批次", "460", "none", "single-origin", 0, false},
	}
	for _, p := range products {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO products(id,name,description,price,stock,grind_option,is_active,category_id,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?)`),
			p.ID, p.Name, p.Desc, p.Price, p.Stock, p.Grind, p.Active, p.Category, now, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
