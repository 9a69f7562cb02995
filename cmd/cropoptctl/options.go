package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cropopt/internal/config"
	"cropopt/pkg/cropopt"
)

// commonFlags are accepted by every command that builds a client. Unset
// flags leave the config file value in place.
type commonFlags struct {
	configPath  string
	catalogPath string
	sheet       string
	tabularPath string
	mode        string
	compat      string
	region      string
	soilPH      float64
	temperature float64
	totalHa     float64
	store       string
	dbPath      string
	benchmarks  string
	logFormat   string
	logLevel    string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.configPath, "config", "", "config file (.toml or .yaml)")
	fs.StringVar(&f.catalogPath, "catalog", "", "detailed crop catalog (.csv or .xlsx)")
	fs.StringVar(&f.sheet, "sheet", "", "xlsx sheet name (default first sheet)")
	fs.StringVar(&f.tabularPath, "tabular", "", "merged tabular catalog csv")
	fs.StringVar(&f.mode, "mode", "", "evaluation mode: detailed|tabular")
	fs.StringVar(&f.compat, "compat", "", "compatibility policy: rule|list|bucket")
	fs.StringVar(&f.region, "region", "", "site region")
	fs.Float64Var(&f.soilPH, "ph", 0, "site soil pH")
	fs.Float64Var(&f.temperature, "temp", 0, "site temperature in °C")
	fs.Float64Var(&f.totalHa, "area", 0, "total area in hectares")
	fs.StringVar(&f.store, "store", "", "store backend: memory|sqlite")
	fs.StringVar(&f.dbPath, "db-path", "", "sqlite database path")
	fs.StringVar(&f.benchmarks, "benchmarks", "", "run artifacts directory")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text|json")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	return f
}

func (f *commonFlags) load() (*config.AppConfig, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.catalogPath != "" {
		cfg.Catalog.Path = f.catalogPath
	}
	if f.sheet != "" {
		cfg.Catalog.Sheet = f.sheet
	}
	if f.tabularPath != "" {
		cfg.Catalog.TabularPath = f.tabularPath
	}
	if f.mode != "" {
		cfg.Run.Mode = f.mode
	}
	if f.compat != "" {
		cfg.Run.Compatibility = f.compat
	}
	if f.region != "" {
		cfg.Site.Region = f.region
	}
	if f.soilPH != 0 {
		cfg.Site.SoilPH = f.soilPH
	}
	if f.temperature != 0 {
		cfg.Site.Temperature = f.temperature
	}
	if f.totalHa != 0 {
		cfg.Area.TotalHa = f.totalHa
	}
	if f.store != "" {
		cfg.Storage.Kind = f.store
	}
	if f.dbPath != "" {
		cfg.Storage.DBPath = f.dbPath
	}
	if f.benchmarks != "" {
		cfg.Storage.BenchmarksDir = f.benchmarks
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *commonFlags) client() (*cropopt.Client, *config.AppConfig, *slog.Logger, error) {
	logger, err := newLogger(os.Stderr, f.logFormat, f.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := f.load()
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := cropopt.New(cropopt.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, nil, nil, err
	}
	return client, cfg, logger, nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
