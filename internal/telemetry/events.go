// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between satcheck and its clients. Every event is a
// flat JSON object with a "type" discriminator, so clients that only care
// about a few kinds can decode into a map and switch on it.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat     EventType = "heartbeat"
	EventState         EventType = "state"
	EventProgress      EventType = "progress"
	EventLog           EventType = "log"
	EventCloseApproach EventType = "close_approach"
	EventRunSummary    EventType = "run_summary"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// NewEvent stamps an envelope with the current time.
func NewEvent(t EventType, component, runID string) Event {
	return Event{Type: t, TS: NowTS(), Component: component, RunID: runID}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor process uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StateTransition is emitted whenever the run moves between phases
// (e.g. FETCHING -> EVALUATING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

// Progress reports incremental completion of a long-running phase like
// fetching or evaluating.
type Progress struct {
	Event
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Detail  string  `json:"detail"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CloseApproach reports one satellite passing inside the separation
// threshold of an observation.
type CloseApproach struct {
	Event
	Observation   string  `json:"observation"`
	Satellite     string  `json:"satellite"`
	MinSeparation float64 `json:"min_separation_deg"`
	MinTime       int     `json:"min_time_s"`
	Samples       int     `json:"samples"`
}

// RunSummary closes a run.
type RunSummary struct {
	Event
	Observations int    `json:"observations"`
	Flagged      int    `json:"flagged"`
	Unchecked    int    `json:"unchecked"`
	SummaryPath  string `json:"summary_path"`
	DurationS    int64  `json:"duration_s"`
}
