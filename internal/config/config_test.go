package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setRequired sets the env vars without which Load fails.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("IDENTITY_URL", "https://identity.local")
	t.Setenv("IDENTITY_SERVICE_ROLE_KEY", "service-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Identity.PageSize != 200 {
		t.Errorf("Identity.PageSize = %d, want %d", cfg.Identity.PageSize, 200)
	}
	if cfg.Upload.MaxFileSize != 5242880 {
		t.Errorf("Upload.MaxFileSize = %d, want %d", cfg.Upload.MaxFileSize, 5242880)
	}
	if cfg.Provision.AllowHTTPApply {
		t.Error("Provision.AllowHTTPApply should default to false")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("IDENTITY_PAGE_SIZE", "50")
	t.Setenv("PROVISION_ALLOW_HTTP_APPLY", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Identity.PageSize != 50 {
		t.Errorf("Identity.PageSize = %d, want %d", cfg.Identity.PageSize, 50)
	}
	if !cfg.Provision.AllowHTTPApply {
		t.Error("Provision.AllowHTTPApply = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVars(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/alttest")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "alt-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Identity.URL != "https://project.supabase.co" {
		t.Errorf("Identity.URL = %q", cfg.Identity.URL)
	}
	if cfg.Identity.ServiceRoleKey != "alt-key" {
		t.Errorf("Identity.ServiceRoleKey = %q", cfg.Identity.ServiceRoleKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, name := range []string{
		"DATABASE_URL", "DB_URL",
		"IDENTITY_URL", "SUPABASE_URL",
		"IDENTITY_SERVICE_ROLE_KEY", "SUPABASE_SERVICE_ROLE_KEY",
	} {
		os.Unsetenv(name)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for missing required env vars")
	}
}

func TestLoad_Duration(t *testing.T) {
	setRequired(t)
	t.Setenv("IDENTITY_TIMEOUT", "45s")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Identity.Timeout != 45*time.Second {
		t.Errorf("Identity.Timeout = %v, want %v", cfg.Identity.Timeout, 45*time.Second)
	}
	if cfg.Server.RequestTimeout != 90*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want %v", cfg.Server.RequestTimeout, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	setRequired(t)
	t.Setenv("API_KEYS", "key-one, key-two , key-three")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"key-one", "key-two", "key-three"}
	if len(cfg.Security.APIKeys) != len(want) {
		t.Fatalf("APIKeys = %v, want %v", cfg.Security.APIKeys, want)
	}
	for i, key := range want {
		if cfg.Security.APIKeys[i] != key {
			t.Errorf("APIKeys[%d] = %q, want %q", i, cfg.Security.APIKeys[i], key)
		}
	}
}

func TestLoad_RequireAPIKeyWithoutKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUIRE_API_KEY", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error when REQUIRE_API_KEY is set without API_KEYS")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	cfg := &Config{}
	cfg.Database.MaxConns = 1
	cfg.Identity.URL = "not-a-url"
	cfg.Identity.Timeout = time.Second
	cfg.Identity.PageSize = 10
	cfg.Server.Port = 70000
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Upload.MaxFileSize = 1
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "text"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}

	for _, want := range []string{"DATABASE_URL", "IDENTITY_URL", "IDENTITY_SERVICE_ROLE_KEY", "SERVER_PORT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	out := cfg.String()
	if strings.Contains(out, "service-key") || strings.Contains(out, "postgres://") {
		t.Errorf("String() leaked a secret: %s", out)
	}
}
