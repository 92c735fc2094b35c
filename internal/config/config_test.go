package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadClampsBadNumericValues(t *testing.T) {
	t.Setenv("DASHBOARD_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("REINVESTMENT_RATE", "3.5")

	cfg := Load()
	if cfg.DashboardTTLSeconds != 60 {
		t.Fatalf("DashboardTTLSeconds = %d, want fallback 60", cfg.DashboardTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("AccessTokenTTLMinutes = %d, want fallback 480", cfg.AccessTokenTTLMinutes)
	}
	if cfg.ReinvestmentRate != 0.7 {
		t.Fatalf("ReinvestmentRate = %v, want fallback 0.7", cfg.ReinvestmentRate)
	}
}

func TestLoadDefaultLocation(t *testing.T) {
	t.Setenv("DEFAULT_LOCATION_ID", "")

	cfg := Load()
	if cfg.LocationID != "main" {
		t.Fatalf("LocationID = %q, want main", cfg.LocationID)
	}
}
