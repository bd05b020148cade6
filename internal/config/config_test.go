package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  host: 127.0.0.1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.SingleCallThreshold != 150_000 {
		t.Errorf("threshold default: %d", cfg.Analysis.SingleCallThreshold)
	}
	if cfg.Analysis.LotExcerptCap != 80_000 {
		t.Errorf("excerpt cap default: %d", cfg.Analysis.LotExcerptCap)
	}
	if cfg.Analysis.TokenBudgetPerMinute != 30_000 {
		t.Errorf("token budget default: %d", cfg.Analysis.TokenBudgetPerMinute)
	}
	if cfg.Cooldown() != 65*time.Second {
		t.Errorf("cooldown default: %s", cfg.Cooldown())
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver default: %s", cfg.Database.Driver)
	}
	if cfg.Worker.Queue != "bidscope:analysis" {
		t.Errorf("queue default: %s", cfg.Worker.Queue)
	}
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
analysis:
  singleCallThreshold: 50000
  cooldownSeconds: 5
worker:
  queue: "custom:queue"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.SingleCallThreshold != 50_000 {
		t.Errorf("threshold: %d", cfg.Analysis.SingleCallThreshold)
	}
	if cfg.Cooldown() != 5*time.Second {
		t.Errorf("cooldown: %s", cfg.Cooldown())
	}
	if cfg.Worker.Queue != "custom:queue" {
		t.Errorf("queue: %s", cfg.Worker.Queue)
	}
}

func TestDSNBuilders(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "mysql"
	cfg.Database.Host = "db.local"
	cfg.Database.Port = 3306
	cfg.Database.User = "app"
	cfg.Database.Password = "s3cret"
	cfg.Database.Name = "bidscope"

	want := "app:s3cret@tcp(db.local:3306)/bidscope?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN = %s", got)
	}

	cfg.Database.Port = 5432
	wantPg := "host=db.local port=5432 user=app password=s3cret dbname=bidscope sslmode=disable"
	if got := cfg.PostgresDSN(); got != wantPg {
		t.Errorf("PostgresDSN = %s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}
