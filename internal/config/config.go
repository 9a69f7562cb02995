package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"cropopt/internal/catalog"
	"cropopt/internal/evo"
	"cropopt/internal/model"
)

const (
	EnvCatalogPath = "CROPOPT_CATALOG_PATH"
	EnvDBPath      = "CROPOPT_DB_PATH"
	EnvListenAddr  = "CROPOPT_LISTEN_ADDR"
)

// AppConfig is the full application configuration.
type AppConfig struct {
	Run        RunConfig            `json:"run" yaml:"run" toml:"run"`
	Site       model.Site           `json:"site" yaml:"site" toml:"site"`
	Area       AreaConfig           `json:"area" yaml:"area" toml:"area"`
	Limits     evo.Limits           `json:"limits" yaml:"limits" toml:"limits"`
	Catalog    CatalogConfig        `json:"catalog" yaml:"catalog" toml:"catalog"`
	Categories catalog.CategorySets `json:"categories" yaml:"categories" toml:"categories"`
	Storage    StorageConfig        `json:"storage" yaml:"storage" toml:"storage"`
	Server     ServerConfig         `json:"server" yaml:"server" toml:"server"`
}

type RunConfig struct {
	Population  int    `json:"population" yaml:"population" toml:"population"`
	Generations int    `json:"generations" yaml:"generations" toml:"generations"`
	Seed        int64  `json:"seed" yaml:"seed" toml:"seed"`
	Workers     int    `json:"workers" yaml:"workers" toml:"workers"`
	Mode        string `json:"mode" yaml:"mode" toml:"mode"`
	// Compatibility defaults per mode when empty.
	Compatibility string `json:"compatibility" yaml:"compatibility" toml:"compatibility"`
}

type AreaConfig struct {
	TotalHa float64 `json:"total_ha" yaml:"total_ha" toml:"total_ha"`
}

type CatalogConfig struct {
	Path        string `json:"path" yaml:"path" toml:"path"`
	Sheet       string `json:"sheet" yaml:"sheet" toml:"sheet"`
	TabularPath string `json:"tabular_path" yaml:"tabular_path" toml:"tabular_path"`
}

type StorageConfig struct {
	Kind          string `json:"kind" yaml:"kind" toml:"kind"`
	DBPath        string `json:"db_path" yaml:"db_path" toml:"db_path"`
	BenchmarksDir string `json:"benchmarks_dir" yaml:"benchmarks_dir" toml:"benchmarks_dir"`
	ExportsDir    string `json:"exports_dir" yaml:"exports_dir" toml:"exports_dir"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Run: RunConfig{
			Population:  20,
			Generations: 50,
			Seed:        1,
			Workers:     4,
			Mode:        evo.ModeDetailed,
		},
		Site: model.Site{Region: "Sudeste", SoilPH: 6.5, Temperature: 25.0},
		Area: AreaConfig{TotalHa: 2.0},
		Limits: evo.Limits{
			Budget:          10,
			Water:           10,
			AvailableAreaM2: 2.0 * model.SquareMetersPerHectare,
			WindowDays:      365,
		},
		Categories: catalog.DefaultCategorySets(),
		Storage: StorageConfig{
			Kind:          "memory",
			DBPath:        "cropopt.db",
			BenchmarksDir: "benchmarks",
			ExportsDir:    "exports",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// CompatibilityPolicy returns the configured policy name, or the mode default.
func (c *AppConfig) CompatibilityPolicy() string {
	if name := strings.TrimSpace(c.Run.Compatibility); name != "" {
		return name
	}
	if c.Run.Mode == evo.ModeTabular {
		return "bucket"
	}
	return "rule"
}

// Load reads a TOML or YAML file over the defaults, then applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, cfg)
		default:
			return nil, fmt.Errorf("unsupported config format %q", ext)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvCatalogPath); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.Server.Addr = v
	}
}

func (c *AppConfig) Validate() error {
	switch {
	case c.Run.Population < 2:
		return fmt.Errorf("run.population must be at least 2, got %d", c.Run.Population)
	case c.Run.Generations < 1:
		return fmt.Errorf("run.generations must be positive, got %d", c.Run.Generations)
	case c.Run.Workers < 1:
		return fmt.Errorf("run.workers must be positive, got %d", c.Run.Workers)
	case c.Area.TotalHa <= 0:
		return fmt.Errorf("area.total_ha must be positive, got %g", c.Area.TotalHa)
	}
	if c.Run.Mode != evo.ModeDetailed && c.Run.Mode != evo.ModeTabular {
		return fmt.Errorf("%w: %s", evo.ErrEvaluatorNotFound, c.Run.Mode)
	}
	return nil
}

// Save writes the configuration as TOML.
func Save(path string, cfg *AppConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
