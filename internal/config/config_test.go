package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OPERATOR_JWT_SECRET", "secret")
	t.Setenv("GENERATION_API_KEY", "key")
}

func TestLoad_HistoryTimestampsDefaultOff(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GetHistoryIncludeTimestamps() {
		t.Error("timestamps should default off")
	}
	if got := cfg.GetHistoryMaxMessages(); got != 20 {
		t.Errorf("history max = %d, want 20", got)
	}
}

func TestLoad_HistoryTimestampsEnabled(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HISTORY_INCLUDE_TIMESTAMPS", "TRUE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.GetHistoryIncludeTimestamps() {
		t.Error("timestamps should be on")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}
