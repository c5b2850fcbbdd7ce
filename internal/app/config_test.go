package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/catalog"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Storage: StorageMemory, TaxRate: "0.1"}, false},
		{"postgres with url", Config{Storage: StoragePostgres, DatabaseURL: "postgres://x", TaxRate: "0"}, false},
		{"postgres without url", Config{Storage: StoragePostgres, TaxRate: "0.1"}, true},
		{"unknown storage", Config{Storage: "redis", TaxRate: "0.1"}, true},
		{"bad tax rate", Config{Storage: StorageMemory, TaxRate: "ten"}, true},
		{"negative tax rate", Config{Storage: StorageMemory, TaxRate: "-0.1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_Tax(t *testing.T) {
	cfg := Config{TaxRate: "0.075"}
	rate, err := cfg.Tax()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.075")))
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: defaultAddr}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:1234", DatabaseURL: "postgres://explicit"}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:1234", explicit.Addr)
}

func TestOpenStorage_Memory(t *testing.T) {
	repos, err := openStorage(t.Context(), &Config{Storage: StorageMemory})
	require.NoError(t, err)
	defer repos.close()

	require.NoError(t, repos.pinger.Ping(t.Context()))
	products, err := repos.catalog.ListProducts(t.Context(), catalog.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}
