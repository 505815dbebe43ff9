package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultAndLockTimeout(t *testing.T) {
	c := Default()
	if c.Dir != "./migrations" || c.MigrationsTable != "" {
		t.Fatal("default mismatch")
	}
	if c.LockTimeout() != 0 {
		t.Fatal("default lock timeout should fail fast")
	}
	c.LockTimeoutSec = 5
	if c.LockTimeout() != 5*time.Second {
		t.Fatal("timeout mismatch")
	}
}

func TestLoadYAMLAndMergeEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(p, []byte("dsn: mysql://u:p@h/db\ndir: ./migs\nlock_timeout_sec: 10\nmigrations_table: t\napplied_by: me\nbase_version: \"3\"\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err := LoadYAML(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dir != "./migs" || cfg.MigrationsTable != "t" || cfg.LockTimeoutSec != 10 || cfg.BaseVersion != "3" {
		t.Fatal("yaml load mismatch")
	}
	t.Setenv("MIGRATIONS_DIR", "./x")
	t.Setenv("LOCK_TIMEOUT_SEC", "20")
	t.Setenv("MIGRATIONS_TABLE", "y")
	t.Setenv("APPLIED_BY", "you")
	t.Setenv("LOG_LEVEL", "debug")
	cfg = MergeEnv(cfg)
	if cfg.Dir != "./x" || cfg.MigrationsTable != "y" || cfg.LockTimeoutSec != 20 || cfg.AppliedBy != "you" || cfg.LogLevel != "debug" {
		t.Fatal("env merge mismatch")
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestURI(t *testing.T) {
	c := &Config{DSN: "mysql://u:p@h:3306/db?tls=true"}
	got, err := c.URI()
	if err != nil || got != c.DSN {
		t.Fatalf("uri without table override changed: %q %v", got, err)
	}
	c.MigrationsTable = "history"
	got, err = c.URI()
	if err != nil {
		t.Fatal(err)
	}
	if got != "mysql://u:p@h:3306/db?migrations_table=history&tls=true" {
		t.Fatalf("unexpected uri %q", got)
	}
}
