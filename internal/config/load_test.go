package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return dir
}

func TestLoadFromUsesDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("load defaults failed: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.Order.SequenceStrategy != SequenceStrategyDB || cfg.Order.Currency != "INR" {
		t.Fatalf("unexpected order defaults: %+v", cfg.Order)
	}
	if cfg.Queue.Queues["critical"] != 5 {
		t.Fatalf("queue weights should default, got %+v", cfg.Queue.Queues)
	}
}

func TestLoadFromReadsFileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9090"
order:
  sequence_strategy: REDIS
  currency: usd
log:
  level: warn
`)
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=bazaar dbname=bazaar")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Log.Level != "warn" {
		t.Fatalf("file values not applied: %+v %+v", cfg.Server, cfg.Log)
	}
	if cfg.Order.SequenceStrategy != SequenceStrategyRedis || cfg.Order.Currency != "USD" {
		t.Fatalf("order values should be normalized: %+v", cfg.Order)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("env should override file and defaults, got %q", cfg.Database.Driver)
	}
	if cfg.Log.ToLoggerOptions().Level != "warn" {
		t.Fatalf("logger options should carry level")
	}
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	dir := writeConfig(t, `
database:
  driver: mysql
order:
  currency: rupee
  max_items: 0
`)
	_, err := LoadFrom(dir)
	if err == nil {
		t.Fatalf("invalid config should fail")
	}
	for _, fragment := range []string{"database.driver", "order.currency", "order.max_items"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error should mention %s: %v", fragment, err)
		}
	}
}

func TestLoadFromRejectsMalformedFile(t *testing.T) {
	dir := writeConfig(t, "server: [unterminated")
	if _, err := LoadFrom(dir); err == nil {
		t.Fatalf("malformed yaml should fail")
	}
}

func TestNormalizeSequenceStrategy(t *testing.T) {
	cases := map[string]string{
		"":         SequenceStrategyDB,
		" Redis ":  SequenceStrategyRedis,
		"latest":   SequenceStrategyLatest,
		"snowball": SequenceStrategyDB,
	}
	for raw, want := range cases {
		if got := NormalizeSequenceStrategy(raw); got != want {
			t.Fatalf("NormalizeSequenceStrategy(%q) = %q, want %q", raw, got, want)
		}
	}
}
