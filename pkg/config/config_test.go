package config

import (
	"os"
	"path/filepath"
	"strings"
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

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", c.Server.Port)
	}
	if c.Data.Ticker != "AMZN" {
		t.Errorf("ticker = %q, want AMZN", c.Data.Ticker)
	}
	if c.Model.Window != 60 {
		t.Errorf("window = %d, want 60", c.Model.Window)
	}
	if c.Model.Scaler != "minmax" {
		t.Errorf("scaler = %q, want minmax", c.Model.Scaler)
	}
	if !c.Scheduler.Enabled {
		t.Error("scheduler should default to enabled")
	}
	if c.Redis.Enabled {
		t.Error("redis should default to disabled")
	}
	if c.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown_timeout = %v, want 10s", c.Server.ShutdownTimeout)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
data:
  ticker: MSFT
model:
  window: 30
  scaler: zscore
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Environment != "production" {
		t.Errorf("environment = %q", c.Environment)
	}
	if c.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", c.Server.Port)
	}
	if c.Data.Ticker != "MSFT" {
		t.Errorf("ticker = %q, want MSFT", c.Data.Ticker)
	}
	if c.Model.Window != 30 || c.Model.Scaler != "zscore" {
		t.Errorf("model = %+v", c.Model)
	}

	// Fields absent from the file keep their defaults.
	if c.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read_timeout = %v, want default 10s", c.Server.ReadTimeout)
	}
	if c.Model.HiddenSize != 64 {
		t.Errorf("hidden_size = %d, want default 64", c.Model.HiddenSize)
	}
	if c.Data.SQLitePath != "data/bars.db" {
		t.Errorf("sqlite_path = %q, want default", c.Data.SQLitePath)
	}
}

func TestLoadKeepsExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
server:
  cors: false
scheduler:
  enabled: false
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.CORS {
		t.Error("cors: false in the file must not be reset to the default")
	}
	if c.Scheduler.Enabled {
		t.Error("scheduler.enabled: false in the file must not be reset to the default")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad port":           "server:\n  port: 70000\n",
		"bad scaler":         "model:\n  scaler: robust\n",
		"bad start date":     "data:\n  start_date: 01/02/2018\n",
		"window too small":   "model:\n  window: 1\n",
		"zero learning rate": "model:\n  learning_rate: 0\n",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := writeConfig(t, "data:\n  ticker: MSFT\n")

	t.Setenv("TICKER", "NVDA")
	t.Setenv("WINDOW", "45")
	t.Setenv("PORT", "9191")
	t.Setenv("REDIS_ADDR", "redis:6379")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Data.Ticker != "NVDA" {
		t.Errorf("ticker = %q, want env override NVDA", c.Data.Ticker)
	}
	if c.Model.Window != 45 {
		t.Errorf("window = %d, want 45", c.Model.Window)
	}
	if c.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", c.Server.Port)
	}
	if !c.Redis.Enabled || c.Redis.Addr != "redis:6379" {
		t.Errorf("REDIS_ADDR should enable redis, got %+v", c.Redis)
	}
}

func TestLoadWithEnvRejectsBadInt(t *testing.T) {
	path := writeConfig(t, "data:\n  ticker: MSFT\n")
	t.Setenv("WINDOW", "sixty")

	if _, err := LoadWithEnv(path); err == nil {
		t.Fatal("expected error for non-integer WINDOW")
	} else if !strings.Contains(err.Error(), "WINDOW") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestStartDay(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	got := c.StartDay()
	if got.Format("2006-01-02") != "2018-01-01" {
		t.Errorf("StartDay = %v, want 2018-01-01", got)
	}
	if got.Location() != time.UTC {
		t.Errorf("StartDay location = %v, want UTC", got.Location())
	}
}
