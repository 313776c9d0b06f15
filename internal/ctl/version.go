package ctl

import (
	"fmt"
	"strings"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at,omitempty"`
}

// runBrief is the part of /api/status that identifies which run the
// server build produced.
type runBrief struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Flagged   int    `json:"flagged"`
	Unchecked int    `json:"unchecked"`
	Evaluated int    `json:"evaluated"`
}

// VersionInfo prints the satctl build next to the satcheck build and the
// run it is serving. An unreachable server is reported, not returned.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	cli := buildInfo{Version: Version, GoVersion: GoVersion}
	var server buildInfo
	serverErr := getJSON(baseURL, "/api/version", &server)

	var run *runBrief
	if serverErr == nil {
		var st StatusResponse
		if err := getJSON(baseURL, "/api/status", &st); err == nil {
			run = &runBrief{
				RunID:     st.Run.RunID,
				State:     st.State,
				Flagged:   st.Run.Flagged,
				Unchecked: st.Run.Unchecked,
				Evaluated: st.Run.Evaluated,
			}
		}
	}

	if jsonOutput {
		resp := map[string]any{"cli": cli}
		if serverErr != nil {
			resp["server_error"] = serverErr.Error()
		} else {
			resp["server"] = server
		}
		if run != nil {
			resp["run"] = run
		}
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SATCHECK VERSION"))
	fmt.Println(rule(38))
	fmt.Printf("  %-12s %s (%s)\n", colorize(dim, "satctl:"), cli.Version, cli.GoVersion)
	if serverErr != nil {
		fmt.Printf("  %-12s %s\n", colorize(dim, "satcheck:"), colorize(red, "unreachable: "+serverErr.Error()))
		fmt.Println()
		return nil
	}
	fmt.Printf("  %-12s %s (%s)\n", colorize(dim, "satcheck:"), server.Version, server.GoVersion)
	if server.BuiltAt != "" {
		fmt.Printf("  %-12s %s\n", colorize(dim, "Built:"), server.BuiltAt)
	}
	if run != nil {
		fmt.Printf("  %-12s %s %s\n", colorize(dim, "Run:"), run.RunID, colorize(stateColor(run.State), run.State))
		fmt.Printf("  %-12s %d evaluated, %s flagged, %d unchecked\n", "",
			run.Evaluated, colorize(yellow, fmt.Sprint(run.Flagged)), run.Unchecked)
	}
	fmt.Println()
	return nil
}
