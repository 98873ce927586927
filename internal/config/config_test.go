package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	os.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	os.Setenv("APP_SECRET", "unit-test-secret")
	defer func() {
		os.Unsetenv("MYSQL_DSN")
		os.Unsetenv("APP_SECRET")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MySQL.DSN == "" {
		t.Error("MySQL DSN should not be empty")
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr :8080, got %s", cfg.HTTPAddr)
	}

	if cfg.Orchestrator.MaxRounds != 5 {
		t.Errorf("Expected default round cap 5, got %d", cfg.Orchestrator.MaxRounds)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	os.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/test")
	os.Unsetenv("APP_SECRET")
	defer os.Unsetenv("MYSQL_DSN")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when APP_SECRET is missing")
	}
}

func TestLoad_MissingMySQLDSN(t *testing.T) {
	os.Unsetenv("MYSQL_DSN")
	os.Setenv("APP_SECRET", "unit-test-secret")
	defer os.Unsetenv("APP_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when MYSQL_DSN is missing")
	}
}

func TestLoadAgent_Defaults(t *testing.T) {
	cfg, err := LoadAgent("")
	if err != nil {
		t.Fatalf("LoadAgent() failed: %v", err)
	}

	if cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("Expected default server URL, got %s", cfg.ServerURL)
	}

	if cfg.ExecTimeoutSec != 30 {
		t.Errorf("Expected default exec timeout 30, got %d", cfg.ExecTimeoutSec)
	}
}

func TestLoadAgent_INIWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "agent.ini")
	contents := "[server]\nurl = http://ini.example.com\n\n[poller]\ninterval_sec = 3\n"
	if err := os.WriteFile(iniPath, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to write INI file: %v", err)
	}

	os.Setenv("AGENT_POLL_INTERVAL_SEC", "7")
	defer os.Unsetenv("AGENT_POLL_INTERVAL_SEC")

	cfg, err := LoadAgent(iniPath)
	if err != nil {
		t.Fatalf("LoadAgent() failed: %v", err)
	}

	if cfg.ServerURL != "http://ini.example.com" {
		t.Errorf("Expected INI server URL, got %s", cfg.ServerURL)
	}

	// ENV wins over INI.
	if cfg.PollIntervalSec != 7 {
		t.Errorf("Expected env override 7, got %d", cfg.PollIntervalSec)
	}
}
