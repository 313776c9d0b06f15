package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// HealthResponse mirrors the detailed JSON from GET /healthz.
type HealthResponse struct {
	Healthy bool                      `json:"healthy"`
	Checks  map[string]map[string]any `json:"checks"`
}

// Health asks the monitor for its component checks. A 503 still carries
// the check list, so it is rendered rather than treated as an error.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	code, body, err := fetch(baseURL, "/healthz", map[string]string{"Accept": "application/json"})
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}
	if code != http.StatusOK && code != http.StatusServiceUnavailable {
		return statusError(code, "/healthz", body)
	}

	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(h)
	}

	fmt.Println()
	if h.Healthy {
		fmt.Printf("  %s  satcheck monitor at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  satcheck monitor at %s\n", colorize(red, "UNHEALTHY"), colorize(dim, baseURL))
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := h.Checks[name]
		mark := colorize(green, "ok  ")
		if ok, _ := c["ok"].(bool); !ok {
			mark = colorize(red, "fail")
		}
		var detail []string
		for _, k := range []string{"path", "state", "error"} {
			if v, ok := c[k]; ok {
				detail = append(detail, fmt.Sprint(v))
			}
		}
		fmt.Printf("    %s %s %s\n", mark, padRight(name, 10), colorize(dim, strings.Join(detail, " ")))
	}
	fmt.Println()

	return nil
}
