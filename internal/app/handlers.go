package app

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/andres-luengo/SatCheck/internal/pipeline"
)

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"name":           component,
		"state":          a.state.Load().(string),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"work_dir":       a.cfg.Data.WorkDir,
	}
	if a.runner != nil {
		resp["run"] = a.runner.Status()
	}
	if du, ok := diskUsage(a.cfg.Data.WorkDir); ok {
		resp["disk"] = du
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	})
}

// handleConfig returns the running configuration. The Space-Track password
// never leaves the process.
func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.logBufMu.Lock()
	entries := make([]logEntry, len(a.logBuf))
	copy(entries, a.logBuf)
	a.logBufMu.Unlock()

	// Apply filters.
	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		var filtered []logEntry
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

// handleResults serves the rows of the finished run. Until the run ends it
// answers 409 so clients can poll.
func (a *App) handleResults(w http.ResponseWriter, _ *http.Request) {
	a.resultMu.Lock()
	res := a.result
	a.resultMu.Unlock()

	if res == nil {
		jsonError(w, "run in progress", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       res.RunID,
		"summary_path": res.SummaryPath,
		"flagged_path": res.FlaggedPath,
		"rows":         res.Rows,
	})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	// Check work directory.
	tmpPath := filepath.Join(a.cfg.Data.WorkDir, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["work_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["work_dir"] = map[string]any{"ok": true, "path": a.cfg.Data.WorkDir}
	}

	state := a.state.Load().(string)
	if state == pipeline.StateFailed {
		checks["run"] = map[string]any{"ok": false, "state": state}
		allOK = false
	} else {
		checks["run"] = map[string]any{"ok": true, "state": state}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
