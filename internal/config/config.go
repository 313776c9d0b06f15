// Package config handles loading, defaulting, and validation of the SatCheck
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data       DataConfig       `toml:"data"       json:"data"`
	Logging    LoggingConfig    `toml:"logging"    json:"logging"`
	Observer   ObserverConfig   `toml:"observer"   json:"observer"`
	SpaceTrack SpaceTrackConfig `toml:"spacetrack" json:"spacetrack"`
	Catalog    CatalogConfig    `toml:"catalog"    json:"catalog"`
	Search     SearchConfig     `toml:"search"     json:"search"`
	Predict    PredictConfig    `toml:"predict"    json:"predict"`
	Monitor    MonitorConfig    `toml:"monitor"    json:"monitor"`
	Metrics    MetricsConfig    `toml:"metrics"    json:"metrics"`
}

type DataConfig struct {
	WorkDir string `toml:"work_dir" json:"work_dir"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

// ObserverConfig is the telescope site. Defaults are the Green Bank
// Telescope.
type ObserverConfig struct {
	Latitude  float64 `toml:"latitude"  json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`
	Altitude  float64 `toml:"altitude"  json:"altitude"`
}

type SpaceTrackConfig struct {
	BaseURL        string `toml:"base_url"         json:"base_url"`
	Identity       string `toml:"identity"         json:"identity"`
	Password       string `toml:"password"         json:"-"`
	RequestDelayMS int    `toml:"request_delay_ms" json:"request_delay_ms"`
	TimeoutSeconds int    `toml:"timeout_seconds"  json:"timeout_seconds"`
	FallbackLatest bool   `toml:"fallback_latest"  json:"fallback_latest"`
}

type CatalogConfig struct {
	UCSURL           string `toml:"ucs_url"            json:"ucs_url"`
	LaunchCutoffYear int    `toml:"launch_cutoff_year" json:"launch_cutoff_year"`
	IDs              []int  `toml:"ids"                json:"ids"`
}

type SearchConfig struct {
	Batches   int    `toml:"batches"   json:"batches"`
	Pattern   string `toml:"pattern"   json:"pattern"`
	Overwrite bool   `toml:"overwrite" json:"overwrite"`
}

type PredictConfig struct {
	Engine string `toml:"engine" json:"engine"`
}

type MonitorConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Bind    string `toml:"bind"    json:"bind"`
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" json:"textfile"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			WorkDir: ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Observer: ObserverConfig{
			Latitude:  38.432987,
			Longitude: -79.839857,
			Altitude:  807.0,
		},
		SpaceTrack: SpaceTrackConfig{
			BaseURL:        "https://www.space-track.org",
			RequestDelayMS: 12001,
			TimeoutSeconds: 120,
			FallbackLatest: true,
		},
		Catalog: CatalogConfig{
			UCSURL:           "https://www.ucsusa.org/sites/default/files/2021-11/UCS-Satellite-Database-9-1-2021.txt",
			LaunchCutoffYear: 2021,
		},
		Search: SearchConfig{
			Batches: 10,
			Pattern: "*.h5",
		},
		Predict: PredictConfig{
			Engine: "sgp4",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Bind:    "127.0.0.1:8090",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns the defaults when path does
// not exist.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks every constraint the pipeline relies on.
func Validate(cfg Config) error {
	if cfg.Data.WorkDir == "" {
		return errors.New("data.work_dir must not be empty")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Observer.Latitude < -90 || cfg.Observer.Latitude > 90 {
		return errors.New("observer.latitude must be between -90 and 90")
	}
	if cfg.Observer.Longitude < -180 || cfg.Observer.Longitude > 180 {
		return errors.New("observer.longitude must be between -180 and 180")
	}
	if cfg.SpaceTrack.BaseURL == "" {
		return errors.New("spacetrack.base_url must not be empty")
	}
	// Space-Track throttles accounts that send back-to-back queries.
	if cfg.SpaceTrack.RequestDelayMS < 1 {
		return errors.New("spacetrack.request_delay_ms must be >= 1")
	}
	if cfg.SpaceTrack.TimeoutSeconds < 1 {
		return errors.New("spacetrack.timeout_seconds must be >= 1")
	}
	if cfg.Catalog.UCSURL == "" && len(cfg.Catalog.IDs) == 0 {
		return errors.New("catalog.ucs_url must be set when catalog.ids is empty")
	}
	if cfg.Search.Batches < 1 {
		return errors.New("search.batches must be >= 1")
	}
	if cfg.Search.Pattern == "" {
		return errors.New("search.pattern must not be empty")
	}
	switch strings.ToLower(cfg.Predict.Engine) {
	case "sgp4", "go-satellite":
	default:
		return fmt.Errorf("predict.engine %q must be sgp4 or go-satellite", cfg.Predict.Engine)
	}
	if cfg.Monitor.Enabled && cfg.Monitor.Bind == "" {
		return errors.New("monitor.bind must not be empty when the monitor is enabled")
	}
	return nil
}

// RequestDelay is the minimum spacing between Space-Track requests.
func (c SpaceTrackConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// Timeout is the HTTP client timeout for Space-Track calls.
func (c SpaceTrackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Debug reports whether request-level logging is on.
func (c LoggingConfig) Debug() bool {
	return strings.EqualFold(c.Level, "debug")
}
