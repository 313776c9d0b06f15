package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WorkDir       string `json:"work_dir"`
	Run           struct {
		RunID        string    `json:"run_id"`
		StartedAt    time.Time `json:"started_at"`
		Observations int       `json:"observations"`
		Evaluated    int       `json:"evaluated"`
		Flagged      int       `json:"flagged"`
		Unchecked    int       `json:"unchecked"`
		NoDataset    int       `json:"no_dataset"`
		Batches      int       `json:"batches"`
		BatchesDone  int       `json:"batches_done"`
		SummaryPath  string    `json:"summary_path"`
	} `json:"run"`
	Disk *struct {
		TotalBytes     int64 `json:"total_bytes"`
		UsedBytes      int64 `json:"used_bytes"`
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk"`
}

// Status fetches the run status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	r := s.Run

	fmt.Println()
	fmt.Println(header("  SATCHECK STATUS"))
	fmt.Println(rule(38))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Run:"), r.RunID)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Work dir:"), s.WorkDir)
	if r.Batches > 0 {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Fetch:"), countLine(r.BatchesDone, r.Batches))
	}
	if r.Observations > 0 {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Evaluate:"), countLine(r.Evaluated, r.Observations))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Flagged:"), colorize(yellow, fmt.Sprint(r.Flagged)))
	fmt.Printf("  %-12s %d\n", colorize(dim, "Unchecked:"), r.Unchecked)
	fmt.Printf("  %-12s %d\n", colorize(dim, "No dataset:"), r.NoDataset)
	if r.SummaryPath != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Summary:"), r.SummaryPath)
	}
	if s.Disk != nil {
		fmt.Printf("  %-12s %s free of %s\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes))
	}
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Println()

	return nil
}
