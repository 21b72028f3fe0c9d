package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_DRIVER", "JWT_SECRET", "JWT_TTL_HOURS", "APP_TIMEZONE", "HUB_MONTHLY_PRICE"} {
		t.Setenv(key, "")
	}

	c := Load()
	if c.Addr() != ":8080" {
		t.Errorf("addr = %q", c.Addr())
	}
	if c.Database.Driver != "postgres" || c.JWTTTL != 7*24*time.Hour || c.HubMonthlyPrice != 150000 {
		t.Errorf("defaults = %+v", c)
	}
	if c.JWTSecret == "" {
		t.Errorf("a development secret should be filled in")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("JWT_TTL_HOURS", "12")
	t.Setenv("APP_TIMEZONE", "Asia/Jakarta")
	t.Setenv("HUB_MONTHLY_PRICE", "99000")
	t.Setenv("MIDTRANS_IS_PRODUCTION", "true")

	c := Load()
	tests := []struct {
		name string
		ok   bool
	}{
		{"port", c.Port == "9000"},
		{"driver", c.Database.Driver == "sqlite"},
		{"secret", c.JWTSecret == "s"},
		{"ttl", c.JWTTTL == 12*time.Hour},
		{"timezone", c.Location.String() == "Asia/Jakarta"},
		{"price", c.HubMonthlyPrice == 99000},
		{"midtrans production", c.Midtrans.IsProduction},
	}
	for _, tt := range tests {
		if !tt.ok {
			t.Errorf("%s not applied", tt.name)
		}
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("JWT_TTL_HOURS", "-3")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("HUB_MONTHLY_PRICE", "cheap")

	c := Load()
	if c.JWTTTL != 7*24*time.Hour || c.Location != time.Local || c.HubMonthlyPrice != 150000 {
		t.Errorf("invalid values leaked into config: ttl %v loc %v price %d", c.JWTTTL, c.Location, c.HubMonthlyPrice)
	}
}
