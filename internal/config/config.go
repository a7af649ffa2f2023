package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"beanstore/internal/domain"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	DBDriver string `mapstructure:"DB_DRIVER"`
	DBDSN    string `mapstructure:"DB_DSN"`
	Debug    bool   `mapstructure:"APP_DEBUG"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`

	SessionTTL   time.Duration `mapstructure:"SESSION_TTL"`
	SessionStore string        `mapstructure:"SESSION_STORE"`
	CookieSecure bool          `mapstructure:"COOKIE_SECURE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleTokenInfoURL string `mapstructure:"GOOGLE_TOKENINFO_URL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic string `mapstructure:"KAFKA_ORDER_TOPIC"`

	DiscountThreshold string `mapstructure:"ORDER_DISCOUNT_THRESHOLD"`
	DiscountAmount    string `mapstructure:"ORDER_DISCOUNT_AMOUNT"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	// Parsed from the two discount keys.
	Discount domain.Discount `mapstructure:"-"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"DB_DRIVER":                "sqlite",
	"DB_DSN":                   "beanstore.db",
	"APP_DEBUG":                false,
	"LOG_LEVEL":                "info",
	"LOG_FILE":                 "",
	"SESSION_TTL":              "168h",
	"SESSION_STORE":            "sql",
	"COOKIE_SECURE":            false,
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"GOOGLE_CLIENT_ID":         "",
	"GOOGLE_TOKENINFO_URL":     "https://oauth2.googleapis.com/tokeninfo",
	"SMTP_HOST":                "",
	"SMTP_PORT":                587,
	"SMTP_USER":                "",
	"SMTP_PASSWORD":            "",
	"MAIL_FROM":                "",
	"KAFKA_BROKERS":            "",
	"KAFKA_ORDER_TOPIC":        "beanstore.orders",
	"ORDER_DISCOUNT_THRESHOLD": "0",
	"ORDER_DISCOUNT_AMOUNT":    "0",
	"ADMIN_EMAIL":              "",
	"ADMIN_PASSWORD":           "",
}

// Load reads defaults, then an optional env file (CONFIG_FILE, default .env),
// then the process environment.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	file := os.Getenv("CONFIG_FILE")
	if file == "" {
		file = ".env"
	}
	if _, err := os.Stat(file); err == nil {
		v.SetConfigFile(file)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: stat %s: %w", file, err)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("config: DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	switch c.SessionStore {
	case "sql":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("config: SESSION_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be sql or redis, got %q", c.SessionStore)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive, got %s", c.SessionTTL)
	}

	threshold, err := decimal.NewFromString(strings.TrimSpace(c.DiscountThreshold))
	if err != nil {
		return fmt.Errorf("config: ORDER_DISCOUNT_THRESHOLD: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(c.DiscountAmount))
	if err != nil {
		return fmt.Errorf("config: ORDER_DISCOUNT_AMOUNT: %w", err)
	}
	if threshold.IsNegative() || amount.IsNegative() {
		return errors.New("config: order discount values must not be negative")
	}
	c.Discount = domain.Discount{Threshold: threshold, Amount: amount}
	return nil
}

// Brokers splits KAFKA_BROKERS; empty means events are not published.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c Config) SMTPEnabled() bool { return c.SMTPHost != "" }
