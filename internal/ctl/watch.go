package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter    []string // event types to show (empty = all)
	JSON      bool     // output raw JSON per event
	UntilDone bool     // return once the run reaches DONE or FAILED
}

// wsURL maps the monitor's HTTP base URL to its WebSocket endpoint.
func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// envelope is the part of every event watch needs for routing.
type envelope struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

// Watch connects to the monitor's WebSocket endpoint and streams events to
// the terminal until interrupted, the connection closes, or, with
// UntilDone, the run finishes.
func Watch(baseURL string, opts WatchOptions) error {
	target, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(green, "connected"), colorize(dim, target))
		if len(opts.Filter) > 0 {
			fmt.Printf("  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		fmt.Println(rule(50))
		fmt.Println()
	}

	show := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		show[f] = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev envelope
			_ = json.Unmarshal(msg, &ev)

			if len(show) == 0 || show[ev.Type] {
				if opts.JSON {
					fmt.Println(string(msg))
				} else {
					renderEvent(msg)
				}
			}
			if opts.UntilDone && ev.Type == "state" && (ev.To == "DONE" || ev.To == "FAILED") {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		if !opts.JSON {
			fmt.Println()
			fmt.Println(colorize(dim, "  disconnecting..."))
		}
	case <-done:
	}
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(1*time.Second),
	)
	return nil
}

// renderEvent parses a JSON event and prints it in a human-friendly format.
// Falls back to raw JSON for unrecognized event types.
func renderEvent(raw []byte) {
	var ev map[string]any
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Printf("  %s\n", string(raw))
		return
	}

	evType, _ := ev["type"].(string)
	ts := formatEventTime(ev)

	switch evType {
	case "heartbeat":
		// Heartbeats are noisy, show them dimmed on a single line.
		state, _ := ev["state"].(string)
		uptime, _ := ev["uptime_seconds"].(float64)
		uptimeStr := formatDuration(time.Duration(uptime) * time.Second)
		fmt.Printf("  %s %s  %s  up %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(state), state),
			colorize(dim, uptimeStr),
		)

	case "state":
		from, _ := ev["from"].(string)
		to, _ := ev["to"].(string)
		fmt.Printf("  %s %s  %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, "STATE"),
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case "log":
		level, _ := ev["level"].(string)
		message, _ := ev["message"].(string)
		component, _ := ev["component"].(string)
		levelStr := formatLogLevel(level)
		src := ""
		if component != "" {
			src = colorize(dim, "["+component+"] ")
		}
		fmt.Printf("  %s %s  %s%s\n", colorize(dim, ts), levelStr, src, message)

	case "progress":
		stage, _ := ev["stage"].(string)
		pct, _ := ev["percent"].(float64)
		detail, _ := ev["detail"].(string)
		bar := meter(pct/100, 20)
		fmt.Printf("  %s %s  [%s] %3.0f%%  %s\n",
			colorize(dim, ts),
			colorize(cyan, padRight(stage, 10)),
			bar,
			pct,
			colorize(dim, detail),
		)

	case "close_approach":
		obs, _ := ev["observation"].(string)
		sat, _ := ev["satellite"].(string)
		sep, _ := ev["min_separation_deg"].(float64)
		minT, _ := ev["min_time_s"].(float64)
		samples, _ := ev["samples"].(float64)
		fmt.Printf("  %s %s  %s %s\n",
			colorize(dim, ts),
			colorize(yellow, "CLOSE"),
			colorize(bold, sat),
			colorize(dim, "near "+filepath.Base(obs)),
		)
		fmt.Printf("    %-14s %s at +%ds (%d samples)\n",
			colorize(dim, "Closest:"), formatSeparation(sep), int(minT), int(samples))

	case "run_summary":
		n, _ := ev["observations"].(float64)
		flagged, _ := ev["flagged"].(float64)
		unchecked, _ := ev["unchecked"].(float64)
		path, _ := ev["summary_path"].(string)
		durSec, _ := ev["duration_s"].(float64)

		fmt.Println()
		fmt.Printf("  %s %s\n", colorize(dim, ts), header("RUN FINISHED"))
		fmt.Printf("    %-14s %d\n", colorize(dim, "Observations:"), int(n))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Flagged:"), colorize(yellow, fmt.Sprint(int(flagged))))
		fmt.Printf("    %-14s %d\n", colorize(dim, "Unchecked:"), int(unchecked))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Duration:"), formatDuration(time.Duration(durSec)*time.Second))
		fmt.Printf("    %-14s %s\n", colorize(dim, "Summary:"), path)
		fmt.Println()

	default:
		// Unknown event type: dump as indented JSON so nothing is lost.
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			fmt.Printf("  %s\n", string(raw))
			return
		}
		fmt.Printf("  %s\n", string(pretty))
	}
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "          "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		if len(tsRaw) > 10 {
			return tsRaw[:10]
		}
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	case "debug":
		return colorize(dim, "DEBUG")
	default:
		return padRight(level, 5)
	}
}
