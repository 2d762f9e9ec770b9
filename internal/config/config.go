// Package config loads the typed TrekSafer settings. Precedence follows the
// deployment convention: TREKSAFER_* environment variables override the
// YAML file config/<env>.yaml, which is chosen by TREKSAFER_ENV. Secrets can
// live in a .env.<env> sidecar. The YAML text undergoes ${VAR} /
// ${VAR:-default} expansion against the process environment before binding.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings is the process-wide configuration, read-only after Load.
type Settings struct {
	Env string `mapstructure:"env"`

	FireRadius float64 `mapstructure:"fire_radius"` // default search km
	MaxRadius  float64 `mapstructure:"max_radius"`  // hard ceiling km
	FireStatus string  `mapstructure:"fire_status"` // default status floor
	FireSize   float64 `mapstructure:"fire_size"`   // minimum hectares
	IncludeAQI bool    `mapstructure:"include_aqi"`

	AvalancheDistanceBuffer float64         `mapstructure:"avalanche_distance_buffer"` // km
	Avalanche               AvalancheConfig `mapstructure:"avalanche"`

	Shapefiles string       `mapstructure:"shapefiles"` // perimeter file base dir
	Boundaries string       `mapstructure:"boundaries"` // boundary set dir
	Data       []DataSource `mapstructure:"data"`

	RequestCacheTimeout int    `mapstructure:"request_cache_timeout"` // seconds
	CacheDir            string `mapstructure:"cache_dir"`

	Transports []TransportConfig `mapstructure:"transports"`

	Log LogConfig `mapstructure:"log"`
}

// AvalancheConfig groups the configured forecast providers by region code.
type AvalancheConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig configures one avalanche forecast provider.
type ProviderConfig struct {
	APIURL             string `mapstructure:"api_url"`
	Language           string `mapstructure:"language"`
	ForecastCutoffHour int    `mapstructure:"forecast_cutoff_hour"`
}

// DataSource declares one wildfire region: where its perimeter files live and
// how raw rows map onto the normalized record.
type DataSource struct {
	Location  string              `mapstructure:"location"` // region code, e.g. BC
	Filename  string              `mapstructure:"filename"` // template with {DATE}
	Mapping   Mapping             `mapstructure:"mapping"`
	StatusMap map[string][]string `mapstructure:"status_map"` // urgency category -> raw strings
}

// Mapping declares which raw attributes supply which normalized keys, with
// optional per-field transforms and an optional REST enrichment.
type Mapping struct {
	Fields     map[string]string `mapstructure:"fields"`     // normalized key -> raw attribute
	Transforms map[string]string `mapstructure:"transforms"` // normalized key -> transform name
	API        *APIEnrichment    `mapstructure:"api"`
}

// APIEnrichment configures the auxiliary per-row REST call.
type APIEnrichment struct {
	URL    string            `mapstructure:"url"`    // template referencing {row_field}
	Fields map[string]string `mapstructure:"fields"` // normalized key -> response field
}

// TransportConfig is the flat union of all transport settings; Type selects
// the variant and validation enforces the fields that variant needs.
type TransportConfig struct {
	Type    string `mapstructure:"type"` // socket, sms, http
	Enabled bool   `mapstructure:"enabled"`

	// socket / http
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// sms
	GatewayURL  string `mapstructure:"gateway_url"`
	ProjectID   string `mapstructure:"project_id"`
	APIToken    string `mapstructure:"api_token"`
	PhoneNumber string `mapstructure:"phone_number"`
	Context     string `mapstructure:"context"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`   // defaults to logs/<env>.log
}

// Load reads, expands, binds, and validates the settings for the current
// TREKSAFER_ENV. Any failure here is fatal to startup.
func Load() (*Settings, error) {
	env := os.Getenv("TREKSAFER_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadEnv(env)
}

// LoadEnv loads the settings for an explicit environment name.
func LoadEnv(env string) (*Settings, error) {
	loadDotenv(env)

	path := filepath.Join("config", env+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("env", env)
	v.SetDefault("fire_radius", 50)
	v.SetDefault("max_radius", 100)
	v.SetDefault("fire_status", "controlled")
	v.SetDefault("fire_size", 1)
	v.SetDefault("include_aqi", false)
	v.SetDefault("avalanche_distance_buffer", 50)
	v.SetDefault("shapefiles", "shapefiles")
	v.SetDefault("boundaries", "boundaries")
	v.SetDefault("request_cache_timeout", 14400) // 4 hours
	v.SetDefault("cache_dir", "caches")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadConfig(bytes.NewReader(ExpandPlaceholders(raw))); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	v.SetEnvPrefix("TREKSAFER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.UnmarshalExact(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if s.Log.File == "" {
		s.Log.File = filepath.Join("logs", s.Env+".log")
	}

	if err := validate(&s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &s, nil
}

// loadDotenv populates os.environ from .env.<env> when present. Existing
// variables are not overridden.
func loadDotenv(env string) {
	path := ".env." + env
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func validate(s *Settings) error {
	if s.MaxRadius <= 0 {
		return fmt.Errorf("max_radius must be > 0, got %v", s.MaxRadius)
	}
	if s.FireRadius <= 0 || s.FireRadius > s.MaxRadius {
		return fmt.Errorf("fire_radius must be in (0, max_radius], got %v", s.FireRadius)
	}
	switch s.FireStatus {
	case "active", "managed", "controlled", "out", "all":
	default:
		return fmt.Errorf("fire_status must be one of active, managed, controlled, out, all; got %q", s.FireStatus)
	}

	for i, ds := range s.Data {
		if ds.Location == "" || ds.Filename == "" {
			return fmt.Errorf("data[%d]: location and filename are required", i)
		}
		if !strings.Contains(ds.Filename, "{DATE}") {
			return fmt.Errorf("data[%d] (%s): filename must contain a {DATE} placeholder", i, ds.Location)
		}
	}

	for i, t := range s.Transports {
		if !t.Enabled {
			continue
		}
		switch t.Type {
		case "socket", "http":
			if t.Host == "" || t.Port == 0 {
				return fmt.Errorf("transports[%d] (%s): host and port are required", i, t.Type)
			}
		case "sms":
			if t.GatewayURL == "" || t.ProjectID == "" || t.APIToken == "" || t.PhoneNumber == "" {
				return fmt.Errorf("transports[%d] (sms): gateway_url, project_id, api_token, and phone_number are required", i)
			}
		default:
			return fmt.Errorf("transports[%d]: unknown transport type %q", i, t.Type)
		}
	}
	return nil
}

// NewLogger builds the process logger: level and format from settings,
// writing to the rotating log file, plus stderr outside prod.
func (s *Settings) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(s.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   s.Log.File,
		MaxSize:    20, // MB
		MaxBackups: 5,
	}
	if s.Env != "prod" {
		w = io.MultiWriter(w, os.Stderr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(s.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
