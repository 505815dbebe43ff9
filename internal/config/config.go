package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mirajehossain/migratex/internal/db"
)

type Config struct {
	DSN             string `yaml:"dsn"`
	Dir             string `yaml:"dir"`
	JSON            bool   `yaml:"json"`
	DryRun          bool   `yaml:"dry_run"`
	LockTimeoutSec  int    `yaml:"lock_timeout_sec"`
	MigrationsTable string `yaml:"migrations_table"`
	AppliedBy       string `yaml:"applied_by"`
	BaseVersion     string `yaml:"base_version"`
	LogLevel        string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Dir:      "./migrations",
		LogLevel: "INFO",
	}
}

func LoadYAML(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func MergeEnv(cfg *Config) *Config {
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("LOCK_TIMEOUT_SEC"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutSec = i
		}
	}
	if v := os.Getenv("MIGRATIONS_TABLE"); v != "" {
		cfg.MigrationsTable = v
	}
	if v := os.Getenv("APPLIED_BY"); v != "" {
		cfg.AppliedBy = v
	}
	if v := os.Getenv("BASE_VERSION"); v != "" {
		cfg.BaseVersion = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// LockTimeout is zero unless configured, so a busy lock fails at once.
func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.LockTimeoutSec) * time.Second
}

// URI returns the connection URI with MigrationsTable, when set, replacing
// whatever table the DSN names.
func (c *Config) URI() (string, error) {
	if c.MigrationsTable == "" {
		return c.DSN, nil
	}
	u, err := url.Parse(c.DSN)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(db.TableParam, c.MigrationsTable)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
