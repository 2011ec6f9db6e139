// Package config loads the process-level settings that surround the
// workflow engine: which config file to read, how the engine is wired
// (expression intrinsic, schema pre-validation), logging, and the
// optional OpenTelemetry exporter target. It never configures anything
// about a specific StateMachine -- that lives in the definition
// document a loader reads separately.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds flowrun's process configuration (SPEC_FULL.md 6).
type Config struct {
	Debug    bool
	LogLevel string

	// AllowExpressionEval enables the optional States.Eval intrinsic
	// (SPEC_FULL.md 4.14). Off by default: it runs caller-supplied
	// Starlark and should be opted into explicitly.
	AllowExpressionEval bool

	// SchemaPath, when set, points at a JSON Schema document used to
	// pre-validate state machine definitions before Build runs
	// (SPEC_FULL.md 4.15).
	SchemaPath string

	DefaultTaskTimeoutSeconds int

	Telemetry TelemetryConfig
}

// TelemetryConfig configures the optional OpenTelemetry hook
// (SPEC_FULL.md 4.16).
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// InitViper wires up config file discovery the same way across every
// entry point: an explicit path wins, otherwise viper looks in the
// current directory and then the XDG config directory for
// flowrun/config.yaml.
func InitViper(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			if _, err := os.Stat(filepath.Join(cwd, "config.yaml")); err == nil {
				viper.AddConfigPath(cwd)
			}
		}
		viper.AddConfigPath(configDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Config file first (lowest priority); environment variables always
	// override it.
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	bindEnvVars()
	return nil
}

func bindEnvVars() {
	viper.BindEnv("debug", "FLOWRUN_DEBUG")
	viper.BindEnv("log_level", "FLOWRUN_LOG_LEVEL")
	viper.BindEnv("allow_expression_eval", "FLOWRUN_ALLOW_EXPRESSION_EVAL")
	viper.BindEnv("schema_path", "FLOWRUN_SCHEMA_PATH")
	viper.BindEnv("default_task_timeout_seconds", "FLOWRUN_DEFAULT_TASK_TIMEOUT_SECONDS")
	viper.BindEnv("telemetry.enabled", "FLOWRUN_TELEMETRY_ENABLED")
	viper.BindEnv("telemetry.service_name", "FLOWRUN_TELEMETRY_SERVICE_NAME")
	viper.BindEnv("telemetry.endpoint", "FLOWRUN_TELEMETRY_ENDPOINT")
}

// Load builds a Config from the FLOWRUN_* environment variables, read
// directly with os.Getenv, falling back to built-in defaults. It does
// not read values from viper, so settings in a config file loaded by
// InitViper do not reach the returned Config.
func Load() (*Config, error) {
	bindEnvVars()

	cfg := &Config{
		Debug:                     getEnvBoolOrDefault("FLOWRUN_DEBUG", false),
		LogLevel:                  getEnvOrDefault("FLOWRUN_LOG_LEVEL", "info"),
		AllowExpressionEval:       getEnvBoolOrDefault("FLOWRUN_ALLOW_EXPRESSION_EVAL", false),
		SchemaPath:                getEnvOrDefault("FLOWRUN_SCHEMA_PATH", ""),
		DefaultTaskTimeoutSeconds: getEnvIntOrDefault("FLOWRUN_DEFAULT_TASK_TIMEOUT_SECONDS", 0),
		Telemetry: TelemetryConfig{
			Enabled:     getEnvBoolOrDefault("FLOWRUN_TELEMETRY_ENABLED", false),
			ServiceName: getEnvOrDefault("FLOWRUN_TELEMETRY_SERVICE_NAME", "flowrun"),
			Endpoint:    getEnvOrDefault("FLOWRUN_TELEMETRY_ENDPOINT", ""),
		},
	}
	return cfg, nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "flowrun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowrun"
	}
	return filepath.Join(home, ".config", "flowrun")
}

func getEnvOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvBoolOrDefault(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func getEnvIntOrDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Validate reports a DefinitionError-shaped problem early, before a
// definition is even loaded, so a misconfigured flowrun invocation fails
// fast with a clear message instead of a confusing error three layers
// down.
func (c *Config) Validate() error {
	if c.SchemaPath != "" {
		if _, err := os.Stat(c.SchemaPath); err != nil {
			return fmt.Errorf("schema_path %q: %w", c.SchemaPath, err)
		}
	}
	return nil
}
