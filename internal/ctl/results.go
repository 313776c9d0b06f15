package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// ResultsResponse mirrors the JSON returned by GET /api/results.
type ResultsResponse struct {
	RunID       string `json:"run_id"`
	SummaryPath string `json:"summary_path"`
	FlaggedPath string `json:"flagged_path"`
	Rows        []struct {
		ObservationID string `json:"observation_id"`
		Satellite     bool   `json:"satellite"`
		Summaries     []struct {
			Satellite     string  `json:"satellite"`
			MinSeparation float64 `json:"min_separation"`
			MinTime       int     `json:"min_time"`
			DetailPath    string  `json:"detail_path"`
		} `json:"summaries"`
	} `json:"rows"`
}

// ResultsOptions configures the results command.
type ResultsOptions struct {
	FlaggedOnly bool
	JSON        bool
}

// Results prints the per-observation outcome of a finished run.
func Results(baseURL string, opts ResultsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/api/results")
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		fmt.Println()
		fmt.Printf("  %s  run still in progress, try again later\n", colorize(yellow, "PENDING"))
		fmt.Println()
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("HTTP %d from /api/results", status)
	}

	var resp ResultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RESULTS  " + resp.RunID))
	fmt.Println(rule(70))

	shown := 0
	for _, row := range resp.Rows {
		if opts.FlaggedOnly && !row.Satellite {
			continue
		}
		shown++
		name := filepath.Base(row.ObservationID)
		if !row.Satellite {
			fmt.Printf("  %s %s\n", colorize(green, padRight("clean", 8)), name)
			continue
		}
		fmt.Printf("  %s %s\n", colorize(yellow, padRight("flagged", 8)), name)
		for _, s := range row.Summaries {
			fmt.Printf("           %s %s  +%ds\n", padRight(s.Satellite, 36), formatSeparation(s.MinSeparation), s.MinTime)
		}
	}
	if shown == 0 {
		fmt.Println("  No observations to show.")
	}

	fmt.Println()
	fmt.Printf("  %-10s %s\n", colorize(dim, "Summary:"), resp.SummaryPath)
	fmt.Printf("  %-10s %s\n", colorize(dim, "Flagged:"), resp.FlaggedPath)
	fmt.Println()
	return nil
}
