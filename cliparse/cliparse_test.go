// cliparse/cliparse_test.go
package cliparse

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("OPERATOR_KEY_SALT", "op-salt")
	t.Setenv("SHORT_ID_SALT", "sid-salt")
	t.Setenv("SESSION_SECRET", "sess-secret")
	t.Setenv("OTP_SALT", "otp-salt")
}

func TestParseFlags_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("expected default database type sqlite, got %s", cfg.DatabaseType)
	}
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := ParseFlags([]string{"-p", "8080"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
}

func TestParseFlags_DefaultPort(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("PORT")

	cfg, err := ParseFlags([]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3418 {
		t.Errorf("expected default port 3418, got %d", cfg.Port)
	}
}

func TestParseFlags_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"missing database url", "DATABASE_URL"},
		{"missing operator salt", "OPERATOR_KEY_SALT"},
		{"missing shortid salt", "SHORT_ID_SALT"},
		{"missing session secret", "SESSION_SECRET"},
		{"missing otp salt", "OTP_SALT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			if _, err := ParseFlags([]string{}); err == nil {
				t.Errorf("expected error when %s is missing", tt.omit)
			}
		})
	}
}

func TestParseFlags_BadDatabaseType(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_TYPE", "oracle")

	if _, err := ParseFlags([]string{}); err == nil {
		t.Error("expected error for unsupported database type")
	}
}

func TestDriverName(t *testing.T) {
	if (Config{DatabaseType: "postgres"}).DriverName() != "postgres" {
		t.Error("postgres type should map to postgres driver")
	}
	if (Config{DatabaseType: "sqlite"}).DriverName() != "sqlite" {
		t.Error("sqlite type should map to sqlite driver")
	}
}
