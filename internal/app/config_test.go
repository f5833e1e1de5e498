package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Storage: StorageConfig{Driver: DriverMemory},
		Pricing: PricingConfig{
			TaxRate:               "0.08",
			ShippingRate:          "10.00",
			FreeShippingThreshold: "100",
			CODEnabled:            true,
			CODFee:                "2.50",
		},
	}
}

func TestPricingConfig_Settings(t *testing.T) {
	cfg := validConfig()
	cfg.Pricing.TaxEnabled = true

	s, err := cfg.Pricing.Settings()
	require.NoError(t, err)
	assert.True(t, s.Tax.Enabled)
	assert.True(t, decimal.RequireFromString("0.08").Equal(s.Tax.Rate))
	assert.True(t, decimal.RequireFromString("10").Equal(s.Shipping.StandardRate))
	assert.True(t, decimal.RequireFromString("100").Equal(s.Shipping.FreeShippingThreshold))
	assert.True(t, s.Payment.COD.Enabled)
	assert.True(t, decimal.RequireFromString("2.5").Equal(s.Payment.COD.AdditionalFee))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "memory driver", mutate: func(*Config) {}},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.Storage.Driver = DriverPostgres },
			wantErr: "database URL is required",
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Storage.DatabaseURL = "postgres://localhost/store"
			},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "redis" },
			wantErr: `unknown storage driver "redis"`,
		},
		{
			name:    "bad amount",
			mutate:  func(c *Config) { c.Pricing.CODFee = "two" },
			wantErr: "pricing cod fee",
		},
		{
			name:    "negative amount",
			mutate:  func(c *Config) { c.Pricing.ShippingRate = "-1" },
			wantErr: "pricing shipping rate must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:7000", Storage: StorageConfig{DatabaseURL: "postgres://explicit/db"}}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}
