package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// BaseConfig contains strata's core configuration needs.
// Applications can embed this in their own config structs to inherit strata's settings.
type BaseConfig struct {
	HTTPPort    int    `toml:"http_port" env:"HTTP_PORT"`
	HealthPort  int    `toml:"health_port" env:"HEALTH_PORT"`
	MetricsPort int    `toml:"metrics_port" env:"METRICS_PORT"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	Environment string `toml:"environment" env:"ENVIRONMENT"`

	// Application settings.
	Proxy           bool     `toml:"proxy" env:"PROXY"`
	SubdomainOffset int      `toml:"subdomain_offset" env:"SUBDOMAIN_OFFSET"`
	Keys            []string `toml:"keys" env:"KEYS"` // comma separated in the environment
	Silent          bool     `toml:"silent" env:"SILENT"`
}

// GetHTTPPort returns the HTTP port to use, checking Nomad dynamic port allocation first.
// If NOMAD_PORT_http is set and valid, it returns that value.
// Otherwise, it falls back to the configured HTTPPort value.
func (b *BaseConfig) GetHTTPPort() int {
	return resolvePort("http", b.HTTPPort)
}

// GetHealthPort returns the health port to use, checking Nomad dynamic port allocation first.
func (b *BaseConfig) GetHealthPort() int {
	return resolvePort("health", b.HealthPort)
}

// GetMetricsPort returns the metrics port to use, checking Nomad dynamic port allocation first.
func (b *BaseConfig) GetMetricsPort() int {
	return resolvePort("metrics", b.MetricsPort)
}

// SlogLevel maps LogLevel onto a slog level. Unknown or empty values mean info.
func (b *BaseConfig) SlogLevel() slog.Level {
	switch strings.ToLower(b.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolvePort checks for Nomad dynamic port allocation and falls back to configured value.
// label is the port label (e.g., "http", "health", "metrics")
func resolvePort(label string, fallback int) int {
	envVar := "NOMAD_PORT_" + label
	nomadPort := os.Getenv(envVar)

	if nomadPort == "" {
		return fallback
	}

	port, err := strconv.Atoi(nomadPort)
	if err != nil {
		slog.Warn("invalid Nomad port, using configured port",
			slog.String("env", envVar),
			slog.String("value", nomadPort),
			slog.Int("fallback", fallback),
		)
		return fallback
	}

	slog.Info("using Nomad-assigned port", slog.String("label", label), slog.Int("port", port))
	return port
}

// Loader handles loading configuration from TOML files, dotenv files and
// environment variables.
type Loader struct {
	configPath string
	envFiles   []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDotenv loads the given .env files into the process environment before
// overrides are applied. Variables already set are not replaced and missing
// files are ignored. With no arguments ".env" is used.
func WithDotenv(files ...string) LoaderOption {
	return func(l *Loader) {
		if len(files) == 0 {
			files = []string{".env"}
		}
		l.envFiles = append(l.envFiles, files...)
	}
}

// NewLoader creates a new config loader for the specified TOML file path.
func NewLoader(configPath string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configPath: configPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the TOML configuration file and unmarshals it into the provided config struct.
// It then applies environment variable overrides for any fields with an `env` tag.
// The config parameter must be a pointer to a struct.
func (l *Loader) Load(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Ptr {
		return fmt.Errorf("config must be a pointer to a struct, got %T", config)
	}
	if rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config must be a pointer to a struct, got pointer to %v", rv.Elem().Kind())
	}

	if _, err := toml.DecodeFile(l.configPath, config); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to decode TOML file %s: %w", l.configPath, err)
	}

	if err := l.loadDotenv(); err != nil {
		return err
	}

	if err := applyEnvOverridesRecursive(rv.Elem()); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return nil
}

func (l *Loader) loadDotenv() error {
	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// applyEnvOverridesRecursive recursively walks through struct fields and applies env overrides.
func applyEnvOverridesRecursive(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := applyEnvOverridesRecursive(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue, fieldType.Name); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field's type.
func setFieldFromString(field reflect.Value, value string, fieldName string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int for field %s: %w", value, fieldName, err)
		}
		field.SetInt(intVal)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as uint for field %s: %w", value, fieldName, err)
		}
		field.SetUint(uintVal)
		return nil

	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as bool for field %s: %w", value, fieldName, err)
		}
		field.SetBool(boolVal)
		return nil

	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float for field %s: %w", value, fieldName, err)
		}
		field.SetFloat(floatVal)
		return nil

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v for field %s", field.Type(), fieldName)
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items).Convert(field.Type()))
		return nil

	default:
		return fmt.Errorf("unsupported field type %v for field %s", field.Kind(), fieldName)
	}
}
