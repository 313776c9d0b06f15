package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Data struct {
			WorkDir string `json:"work_dir"`
		} `json:"data"`
		Logging struct {
			Level string `json:"level"`
		} `json:"logging"`
		Observer struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Altitude  float64 `json:"altitude"`
		} `json:"observer"`
		SpaceTrack struct {
			BaseURL        string `json:"base_url"`
			Identity       string `json:"identity"`
			RequestDelayMS int    `json:"request_delay_ms"`
			TimeoutSeconds int    `json:"timeout_seconds"`
			FallbackLatest bool   `json:"fallback_latest"`
		} `json:"spacetrack"`
		Catalog struct {
			UCSURL           string `json:"ucs_url"`
			LaunchCutoffYear int    `json:"launch_cutoff_year"`
			IDs              []int  `json:"ids"`
		} `json:"catalog"`
		Search struct {
			Batches   int    `json:"batches"`
			Pattern   string `json:"pattern"`
			Overwrite bool   `json:"overwrite"`
		} `json:"search"`
		Predict struct {
			Engine string `json:"engine"`
		} `json:"predict"`
		Monitor struct {
			Bind string `json:"bind"`
		} `json:"monitor"`
		Metrics struct {
			Textfile string `json:"textfile"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  SATCHECK CONFIGURATION"))
	fmt.Println(rule(50))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("work_dir", cfg.Data.WorkDir)

	section("logging")
	field("level", cfg.Logging.Level)

	section("observer")
	field("latitude", cfg.Observer.Latitude)
	field("longitude", cfg.Observer.Longitude)
	field("altitude", cfg.Observer.Altitude)

	section("spacetrack")
	field("base_url", cfg.SpaceTrack.BaseURL)
	field("identity", cfg.SpaceTrack.Identity)
	field("request_delay_ms", cfg.SpaceTrack.RequestDelayMS)
	field("timeout_seconds", cfg.SpaceTrack.TimeoutSeconds)
	field("fallback_latest", cfg.SpaceTrack.FallbackLatest)

	section("catalog")
	field("ucs_url", cfg.Catalog.UCSURL)
	field("launch_cutoff_year", cfg.Catalog.LaunchCutoffYear)
	if len(cfg.Catalog.IDs) > 0 {
		field("ids", fmt.Sprintf("%d ids", len(cfg.Catalog.IDs)))
	}

	section("search")
	field("batches", cfg.Search.Batches)
	field("pattern", cfg.Search.Pattern)
	field("overwrite", cfg.Search.Overwrite)

	section("predict")
	field("engine", cfg.Predict.Engine)

	section("monitor")
	field("bind", cfg.Monitor.Bind)

	section("metrics")
	field("textfile", cfg.Metrics.Textfile)

	fmt.Println()

	return nil
}
