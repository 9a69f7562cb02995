package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropopt/internal/evo"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Run, cfg.Run)
	assert.Equal(t, "Sudeste", cfg.Site.Region)
	assert.Equal(t, 2.0, cfg.Area.TotalHa)
	assert.Equal(t, "rule", cfg.CompatibilityPolicy())
	assert.Contains(t, cfg.Categories.ShadeProducing, "Eucalipto")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "cropopt.toml", `
[run]
population = 30
generations = 10
mode = "tabular"

[site]
region = "Sul"
soil_ph = 5.8
temperature = 19.5

[limits]
budget = 12.5
water = 8
available_area_m2 = 5000
window_days = 120

[catalog]
tabular_path = "data/table.csv"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Run.Population)
	assert.Equal(t, 10, cfg.Run.Generations)
	assert.Equal(t, evo.ModeTabular, cfg.Run.Mode)
	assert.Equal(t, "bucket", cfg.CompatibilityPolicy())
	assert.Equal(t, "Sul", cfg.Site.Region)
	assert.InDelta(t, 5.8, cfg.Site.SoilPH, 1e-9)
	assert.Equal(t, 12.5, cfg.Limits.Budget)
	assert.Equal(t, 120, cfg.Limits.WindowDays)
	assert.Equal(t, "data/table.csv", cfg.Catalog.TabularPath)
	// untouched sections keep defaults
	assert.Equal(t, int64(1), cfg.Run.Seed)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cropopt.yaml", `
run:
  population: 8
  compatibility: list
area:
  total_ha: 3.5
categories:
  native: [Araticum]
storage:
  kind: sqlite
  db_path: runs.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Run.Population)
	assert.Equal(t, "list", cfg.CompatibilityPolicy())
	assert.Equal(t, 3.5, cfg.Area.TotalHa)
	assert.Equal(t, []string{"Araticum"}, cfg.Categories.Native)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.Equal(t, "runs.db", cfg.Storage.DBPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvCatalogPath, "/data/crops.xlsx")
	t.Setenv(EnvDBPath, "/data/cropopt.db")
	t.Setenv(EnvListenAddr, "127.0.0.1:9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/crops.xlsx", cfg.Catalog.Path)
	assert.Equal(t, "/data/cropopt.db", cfg.Storage.DBPath)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	cases := map[string]string{
		"unknown mode":     "[run]\nmode = \"fuzzy\"\n",
		"tiny population":  "[run]\npopulation = 1\n",
		"zero area":        "[area]\ntotal_ha = 0\n",
		"malformed toml":   "[run\n",
		"negative workers": "[run]\nworkers = -1\n",
		"zero generations": "[run]\ngenerations = 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.toml", body))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeFile(t, "cropopt.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Population = 42
	cfg.Site.Region = "Norte"
	path := filepath.Join(t.TempDir(), "saved.toml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Run.Population)
	assert.Equal(t, "Norte", loaded.Site.Region)
	assert.Equal(t, cfg.Categories.ShadeProducing, loaded.Categories.ShadeProducing)
}
