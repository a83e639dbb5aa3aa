// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/sentinel-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sentinel configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Server  ServerConfig  `toml:"server" json:"server"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Network NetworkConfig `toml:"network" json:"network"`
	UI      UIConfig      `toml:"ui" json:"ui"`
}

// ServerConfig locates the backend service.
type ServerConfig struct {
	// URL is the API base, including the /api prefix.
	URL string `toml:"url" json:"url" validate:"required,http_url"`
	// PollTimeoutSecs bounds each console refresh cycle. 0 disables the bound.
	// Access requests are never bounded.
	PollTimeoutSecs int `toml:"poll_timeout_secs" json:"poll_timeout_secs" validate:"gte=0,lte=300"`
}

// StorageConfig locates the credential store.
type StorageConfig struct {
	// Path is the SQLite database holding the token and identity.
	Path string `toml:"path" json:"path" validate:"required"`
	// KeyPath is the secretbox key used to seal the token at rest.
	KeyPath string `toml:"key_path" json:"key_path" validate:"required"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `toml:"format" json:"format" validate:"oneof=json console"`
	// File receives log output while the TUI owns the terminal.
	File string `toml:"file" json:"file"`
}

// NetworkConfig tunes the outbound request limiter and the circuit breaker.
type NetworkConfig struct {
	// RateLimit is the sustained request rate per second.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" validate:"gt=0,lte=1000"`
	Burst     int     `toml:"burst" json:"burst" validate:"gte=1,lte=1000"`
	// BreakerFailures is the number of consecutive backend failures that
	// opens the circuit.
	BreakerFailures uint32 `toml:"breaker_failures" json:"breaker_failures" validate:"gte=1,lte=100"`
	// BreakerCooldownSecs is how long the circuit stays open.
	BreakerCooldownSecs int `toml:"breaker_cooldown_secs" json:"breaker_cooldown_secs" validate:"gte=1,lte=3600"`
}

// UIConfig contains TUI settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" json:"theme" validate:"oneof=dark light auto"`
	// ShowExpiry shows the remaining session time in the status bar.
	ShowExpiry bool `toml:"show_expiry" json:"show_expiry"`
	// AltScreen runs the TUI in the terminal's alternate screen.
	AltScreen bool `toml:"alt_screen" json:"alt_screen"`
}

// PollTimeout returns the refresh bound as a duration.
func (s ServerConfig) PollTimeout() time.Duration {
	return time.Duration(s.PollTimeoutSecs) * time.Second
}

// BreakerCooldown returns the open-circuit duration.
func (n NetworkConfig) BreakerCooldown() time.Duration {
	return time.Duration(n.BreakerCooldownSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultServerURL is a backend running locally on its default port.
const DefaultServerURL = "http://localhost:5000/api"

// Default returns a Config with default values. Storage and log paths are
// filled in by SetDefaults once the config directory is known.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			URL:             DefaultServerURL,
			PollTimeoutSecs: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Network: NetworkConfig{
			RateLimit:           10,
			Burst:               8,
			BreakerFailures:     5,
			BreakerCooldownSecs: 30,
		},
		UI: UIConfig{
			Theme:      "auto",
			ShowExpiry: true,
			AltScreen:  true,
		},
	}
}

// SetDefaults fills empty path fields relative to the config directory.
func (c *Config) SetDefaults() {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(dir, "sentinel.db")
	}
	if c.Storage.KeyPath == "" {
		c.Storage.KeyPath = filepath.Join(dir, "store.key")
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "sentinel.log")
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.UI.Theme = strings.ToLower(c.UI.Theme)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sentinel configuration directory: $SENTINEL_HOME when
// set, otherwise ~/.sentinel.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SENTINEL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sentinel"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if present, then applies environment
// overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load with an explicit file. A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile reads path over the defaults without environment overrides or
// validation, for editing the file itself. A missing file yields Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# sentinel configuration file\n")
	buf.WriteString("# Environment variables (SENTINEL_*) override values here.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their TOML key so errors match the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, ValidationError{
			Field:   dottedField(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return errs
}

// dottedField strips the root struct name: "Config.server.url" -> "server.url".
func dottedField(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "http_url":
		return fmt.Sprintf("invalid URL %q, must be http(s)://host[:port]/path", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SENTINEL_SERVER_URL: overrides server.url
//   - SENTINEL_LOG_LEVEL: overrides logging.level
//   - SENTINEL_LOG_FORMAT: overrides logging.format
//   - SENTINEL_STORE_PATH: overrides storage.path
//   - SENTINEL_THEME: overrides ui.theme
//   - SENTINEL_RATE_LIMIT: overrides network.rate_limit (ignored if not a number)
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SENTINEL_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SENTINEL_STORE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SENTINEL_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("SENTINEL_RATE_LIMIT"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.Network.RateLimit = rate
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get returns the value at a dotted TOML key such as "server.url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value at a dotted TOML key. String values are converted to
// the field's type. The result is not validated; call Validate before saving.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if field.Kind() == reflect.Struct {
		return fmt.Errorf("%s is a section, not a value", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()

	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%s is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTOMLName(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown key: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTOMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tomlName(t.Field(i)) == strings.ToLower(name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tomlName(f reflect.StructField) string {
	return strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
}

// setFieldValue sets field from value, converting strings as needed.
func setFieldValue(field reflect.Value, value interface{}) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Uint32:
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetUint(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid number value: %w", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %w", err)
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dot notation, sorted.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + tomlName(f)
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}
