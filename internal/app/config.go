package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	BodyLimit string `default:"1M" usage:"Maximum request body size" flag:"body-limit"`
	Storage   StorageConfig
	Kafka     KafkaConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	Driver      string `default:"postgres" usage:"Storage driver: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Migrate     bool   `default:"true" usage:"Apply the embedded schema on start"`
	SeedFile    string `usage:"JSON seed document applied on start" flag:"seed-file"`
}

// KafkaConfig enables order event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `usage:"Kafka bootstrap brokers"`
	Topic        string        `default:"storefront.orders" usage:"Topic for order events"`
	WriteTimeout time.Duration `default:"10s" usage:"Kafka write timeout"`
}

// PricingConfig holds the store settings used until settings are saved to
// storage. Amounts are decimal strings.
type PricingConfig struct {
	TaxEnabled            bool   `default:"false" usage:"Charge tax"`
	TaxRate               string `default:"0" usage:"Tax rate as a fraction, 0.08 is 8%"`
	TaxIncludeInPrice     bool   `default:"false" usage:"Catalog prices are displayed tax inclusive"`
	ShippingRate          string `default:"10.00" usage:"Flat shipping fee"`
	FreeShippingThreshold string `default:"100.00" usage:"Subtotal above which shipping is free"`
	CODEnabled            bool   `default:"true" usage:"Accept cash on delivery"`
	CODFee                string `default:"0" usage:"Cash on delivery surcharge"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads an optional .env file, then environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints aconfig cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Pricing.Settings(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Settings converts the configured amounts into pricing settings.
func (p PricingConfig) Settings() (pricing.Settings, error) {
	var (
		s   pricing.Settings
		err error
	)
	parse := func(name, v string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		d, perr := decimal.NewFromString(v)
		if perr != nil {
			err = errors.Wrapf(perr, "pricing %s", name)
			return decimal.Zero
		}
		if d.IsNegative() {
			err = errors.Errorf("pricing %s must not be negative", name)
		}
		return d
	}

	s.Tax = pricing.TaxSettings{
		Enabled:        p.TaxEnabled,
		Rate:           parse("tax rate", p.TaxRate),
		IncludeInPrice: p.TaxIncludeInPrice,
	}
	s.Shipping = pricing.ShippingSettings{
		StandardRate:          parse("shipping rate", p.ShippingRate),
		FreeShippingThreshold: parse("free shipping threshold", p.FreeShippingThreshold),
	}
	s.Payment.COD = pricing.CODSettings{
		Enabled:       p.CODEnabled,
		AdditionalFee: parse("cod fee", p.CODFee),
	}
	return s, err
}
