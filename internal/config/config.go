// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for sagechat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.sagechat/config.toml
//   - ~/.sagechat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arcum42/sagechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sagechat configuration.
type Config struct {
	// General settings
	Version         string `toml:"version" json:"version"`
	DefaultProvider string `toml:"default_provider" json:"default_provider"`
	DefaultModel    string `toml:"default_model" json:"default_model"`

	// Ollama backend configuration
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// LM Studio backend configuration
	LMStudio LMStudioConfig `toml:"lmstudio" json:"lmstudio"`

	// HTTP API configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Local storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Generation behavior configuration
	Generation GenerationConfig `toml:"generation" json:"generation"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// OllamaConfig contains Ollama backend configuration.
type OllamaConfig struct {
	// BaseURL is the URL of the Ollama server
	BaseURL string `toml:"base_url" json:"base_url"`
}

// LMStudioConfig contains LM Studio backend configuration.
type LMStudioConfig struct {
	// BaseURL is the URL of the LM Studio server
	BaseURL string `toml:"base_url" json:"base_url"`
}

// ServerConfig contains HTTP API configuration for `sagechat serve`.
type ServerConfig struct {
	// ListenAddr is the address the HTTP API binds to
	ListenAddr string `toml:"listen_addr" json:"listen_addr"`
	// RateLimit is the sustained requests-per-second limit per server
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the burst size for the rate limiter
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// StorageConfig contains local storage configuration.
type StorageConfig struct {
	// DataDir is the directory for conversations, presets, settings and
	// telemetry. Empty means the default (~/.sagechat).
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// GenerationConfig contains generation behavior configuration.
type GenerationConfig struct {
	// ModelCacheTTLSecs is how long fetched model lists are cached before
	// being refreshed from the backend
	ModelCacheTTLSecs int `toml:"model_cache_ttl_secs" json:"model_cache_ttl_secs"`
	// TelemetryEnabled controls whether per-generation usage is recorded
	TelemetryEnabled bool `toml:"telemetry_enabled" json:"telemetry_enabled"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ShowStats displays stream statistics after each generation
	ShowStats bool `toml:"show_stats" json:"show_stats"`
	// CompactMode uses a more compact UI layout
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		DefaultProvider: "ollama",
		DefaultModel:    "",

		Ollama: OllamaConfig{
			BaseURL: "http://127.0.0.1:11434",
		},

		LMStudio: LMStudioConfig{
			BaseURL: "http://127.0.0.1:1234",
		},

		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8787",
			RateLimit:  10,
			RateBurst:  20,
		},

		Storage: StorageConfig{
			DataDir: "",
		},

		Generation: GenerationConfig{
			ModelCacheTTLSecs: 300,
			TelemetryEnabled:  true,
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowStats:   true,
			CompactMode: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sagechat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sagechat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// DataDir resolves the effective data directory for local state.
// Falls back to the config directory when storage.data_dir is unset.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	return ConfigDir()
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.SetDefaults()
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("invalid config: %w", err)
				}
				return cfg, nil
			}
		}
	}

	// Try JSON as fallback
	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.SetDefaults()
				if err := cfg.Validate(); err != nil {
					return nil, fmt.Errorf("invalid config: %w", err)
				}
				return cfg, nil
			}
		}
	}

	// Apply environment overrides to defaults
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	fmt.Fprintln(file, "# sagechat configuration file")
	fmt.Fprintln(file, "# Generated by sagechat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// Atomic write with fsync prevents data loss on crash.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Validate default provider
	validProviders := map[string]bool{"ollama": true, "lmstudio": true}
	if !validProviders[strings.ToLower(c.DefaultProvider)] {
		errs = append(errs, ValidationError{
			Field:   "default_provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, lmstudio", c.DefaultProvider),
		})
	}

	// Validate backend URLs
	if c.Ollama.BaseURL != "" {
		if u, err := url.Parse(c.Ollama.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "ollama.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Ollama.BaseURL),
			})
		}
	}
	if c.LMStudio.BaseURL != "" {
		if u, err := url.Parse(c.LMStudio.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "lmstudio.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.LMStudio.BaseURL),
			})
		}
	}

	// Validate rate limiting
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit",
			Message: "must be non-negative",
		})
	}
	if c.Server.RateBurst < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_burst",
			Message: "must be non-negative",
		})
	}

	// Validate model cache TTL
	if c.Generation.ModelCacheTTLSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.model_cache_ttl_secs",
			Message: "must be non-negative",
		})
	}

	// Validate UI theme
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = defaults.DefaultProvider
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if c.LMStudio.BaseURL == "" {
		c.LMStudio.BaseURL = defaults.LMStudio.BaseURL
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaults.Server.ListenAddr
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = defaults.Server.RateLimit
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = defaults.Server.RateBurst
	}

	if c.Generation.ModelCacheTTLSecs == 0 {
		c.Generation.ModelCacheTTLSecs = defaults.Generation.ModelCacheTTLSecs
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SAGECHAT_PROVIDER: overrides default_provider
//   - SAGECHAT_MODEL: overrides default_model
//   - SAGECHAT_OLLAMA_URL: overrides ollama.base_url
//   - SAGECHAT_LMSTUDIO_URL: overrides lmstudio.base_url
//   - SAGECHAT_DATA_DIR: overrides storage.data_dir
//   - SAGECHAT_LISTEN_ADDR: overrides server.listen_addr
//   - SAGECHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if provider := os.Getenv("SAGECHAT_PROVIDER"); provider != "" {
		c.DefaultProvider = provider
	}

	if model := os.Getenv("SAGECHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}

	if u := os.Getenv("SAGECHAT_OLLAMA_URL"); u != "" {
		c.Ollama.BaseURL = u
	}

	if u := os.Getenv("SAGECHAT_LMSTUDIO_URL"); u != "" {
		c.LMStudio.BaseURL = u
	}

	if dir := os.Getenv("SAGECHAT_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}

	if addr := os.Getenv("SAGECHAT_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}

	if theme := os.Getenv("SAGECHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		// If this is the last part, return the value
		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		// Otherwise, navigate into the struct
		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "ollama.base_url").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		// If this is the last part, set the value
		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		// Otherwise, navigate into the struct
		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	// Handle string input with type conversion
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	// Handle direct assignment for matching types
	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to field of type %s", value, field.Type())
}
