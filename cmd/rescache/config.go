package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/reportkit/rescache"
	zaplog "github.com/reportkit/rescache/log/zap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config mirrors the knobs a pipeline operator tunes per deployment. Values
// in the YAML file overlay the defaults; ${VAR} references are expanded from
// the environment before parsing.
type Config struct {
	CacheDir            string                   `yaml:"cache_dir"`
	MaxSizeMB           int64                    `yaml:"max_size_mb"`
	DefaultTTL          time.Duration            `yaml:"default_ttl"`
	TTLs                map[string]time.Duration `yaml:"ttls"`
	CheckpointDir       string                   `yaml:"checkpoint_dir"`
	CheckpointRetention int                      `yaml:"checkpoint_retention"`
	LogLevel            string                   `yaml:"log_level"`
}

func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".reportkit")
	return Config{
		CacheDir:            filepath.Join(base, "cache"),
		MaxSizeMB:           500,
		DefaultTTL:          24 * time.Hour,
		CheckpointDir:       filepath.Join(base, "checkpoints"),
		CheckpointRetention: 3,
		LogLevel:            "info",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg Config) (rescache.Logger, func(), error) {
	lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log_level %q: %w", cfg.LogLevel, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return zaplog.ZapLogger{L: zl}, func() { _ = zl.Sync() }, nil
}

func openShared(cfg Config) (rescache.Cache[[]byte], func(), error) {
	log, flush, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := rescache.Shared(rescache.SharedConfig{
		Dir:           cfg.CacheDir,
		MaxSizeBytes:  cfg.MaxSizeMB * 1024 * 1024,
		DefaultTTL:    cfg.DefaultTTL,
		TTLByCategory: cfg.TTLs,
		Logger:        log,
	})
	if err != nil {
		flush()
		return nil, nil, err
	}
	return c, flush, nil
}
