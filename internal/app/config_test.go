package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATA_SOURCE", SourceBackend)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.CatalogResolve)
	assert.Equal(t, 12*time.Hour, cfg.DraftTTL)
	assert.Equal(t, "BDT", cfg.Currency)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATA_SOURCE", "postgres")
	t.Setenv("CATALOG_GROUPING", "group_id")
	t.Setenv("CATALOG_RESOLVE", "first")
	t.Setenv("CATALOG_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, SourcePostgres, cfg.DataSource)
	assert.Equal(t, 90*time.Second, cfg.CatalogCacheTTL)
	assert.Len(t, cfg.CatalogOptions(), 2)
}

func TestLoadConfigRejectsUnknownValues(t *testing.T) {
	cases := map[string][2]string{
		"data source": {"DATA_SOURCE", "mongo"},
		"grouping":    {"CATALOG_GROUPING", "sku"},
		"resolve":     {"CATALOG_RESOLVE", "random"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfigCatalogOptionsApply(t *testing.T) {
	cfg := &Config{CatalogGrouping: "name", CatalogResolve: "first"}
	cat := catalog.Build(nil, cfg.CatalogOptions()...)
	assert.Equal(t, catalog.ResolveFirstVariant, cat.Policy())

	var nilCfg *Config
	assert.Nil(t, nilCfg.CatalogOptions())
	assert.False(t, nilCfg.IsProduction())
}
