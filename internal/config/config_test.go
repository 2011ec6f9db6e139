package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	original, had := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, original)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"FLOWRUN_DEBUG", "FLOWRUN_LOG_LEVEL", "FLOWRUN_ALLOW_EXPRESSION_EVAL",
		"FLOWRUN_SCHEMA_PATH", "FLOWRUN_DEFAULT_TASK_TIMEOUT_SECONDS",
		"FLOWRUN_TELEMETRY_ENABLED", "FLOWRUN_TELEMETRY_SERVICE_NAME", "FLOWRUN_TELEMETRY_ENDPOINT",
	} {
		original, had := os.LookupEnv(key)
		os.Unsetenv(key)
		k := key
		v, h := original, had
		t.Cleanup(func() {
			if h {
				os.Setenv(k, v)
			}
		})
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Debug {
		t.Error("expected Debug to default to false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %q", cfg.LogLevel)
	}
	if cfg.AllowExpressionEval {
		t.Error("expected AllowExpressionEval to default to false")
	}
	if cfg.Telemetry.ServiceName != "flowrun" {
		t.Errorf("expected default telemetry service name 'flowrun', got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	withEnv(t, "FLOWRUN_DEBUG", "true")
	withEnv(t, "FLOWRUN_LOG_LEVEL", "debug")
	withEnv(t, "FLOWRUN_ALLOW_EXPRESSION_EVAL", "true")
	withEnv(t, "FLOWRUN_DEFAULT_TASK_TIMEOUT_SECONDS", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected Debug to be true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel 'debug', got %q", cfg.LogLevel)
	}
	if !cfg.AllowExpressionEval {
		t.Error("expected AllowExpressionEval to be true")
	}
	if cfg.DefaultTaskTimeoutSeconds != 45 {
		t.Errorf("expected DefaultTaskTimeoutSeconds 45, got %d", cfg.DefaultTaskTimeoutSeconds)
	}
}

func TestLoad_InvalidBoolFallsBackToDefault(t *testing.T) {
	withEnv(t, "FLOWRUN_DEBUG", "not-a-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Debug {
		t.Error("expected invalid bool env var to fall back to default false")
	}
}

func TestValidate_MissingSchemaPathIsAnError(t *testing.T) {
	cfg := &Config{SchemaPath: filepath.Join(t.TempDir(), "does-not-exist.json")}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to error on a missing schema file")
	}
}

func TestValidate_NoSchemaPathIsFine(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error with empty SchemaPath, got %v", err)
	}
}

func TestValidate_ExistingSchemaPathIsFine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("failed to write test schema: %v", err)
	}
	cfg := &Config{SchemaPath: path}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error with existing SchemaPath, got %v", err)
	}
}
