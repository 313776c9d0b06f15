// Package app wires together the monitor HTTP server, the WebSocket hub, and
// the pipeline runner. It owns the process lifecycle while a run is being
// watched and is the single source of truth for the current phase.
package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andres-luengo/SatCheck/internal/config"
	"github.com/andres-luengo/SatCheck/internal/metrics"
	"github.com/andres-luengo/SatCheck/internal/pipeline"
	"github.com/andres-luengo/SatCheck/internal/telemetry"
	"github.com/andres-luengo/SatCheck/internal/ws"
)

const (
	component = "satcheck"
	logBufCap = 500
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger  *log.Logger
	Cfg     config.Config
	Bind    string
	Runner  *pipeline.Runner
	Metrics *metrics.Collector

	// Linger keeps the monitor serving after a successful run until the
	// context is cancelled.
	Linger bool
}

type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// App serves the monitor while a run executes. It implements
// pipeline.Broadcaster so every runner event reaches WebSocket clients and
// log lines land in the /api/logs buffer.
type App struct {
	log     *log.Logger
	cfg     config.Config
	bind    string
	server  *http.Server
	runner  *pipeline.Runner
	metrics *metrics.Collector
	linger  bool

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, FETCHING, etc.)

	wsHub *ws.Hub

	logBufMu sync.Mutex
	logBuf   []logEntry

	resultMu sync.Mutex
	result   *pipeline.Result
}

// New creates an App in the BOOTING state and attaches it to the runner's
// event stream. Call Run to start serving.
func New(opts Options) *App {
	a := &App{
		log:       opts.Logger,
		cfg:       opts.Cfg,
		bind:      opts.Bind,
		runner:    opts.Runner,
		metrics:   opts.Metrics,
		linger:    opts.Linger,
		startedAt: time.Now(),
		wsHub:     ws.NewHub(),
	}
	a.state.Store(pipeline.StateBooting)
	if a.runner != nil {
		a.runner.Events = a
	}
	return a
}

// Handler returns the monitor's routes, wrapped with request metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/results", a.handleResults)
	mux.Handle("/ws", a.wsHub.Handler())
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}
	return a.metrics.Middleware(mux)
}

// Run starts the HTTP server, WebSocket hub, and heartbeat ticker, then
// executes the pipeline over paths. It returns the run's error once the
// pipeline finishes, or after ctx is cancelled when lingering.
func (a *App) Run(ctx context.Context, paths []string) error {
	bind := a.bind
	if bind == "" && a.cfg.Monitor.Bind != "" {
		bind = a.cfg.Monitor.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8090"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Printf("monitor listening on http://%s", ln.Addr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.wsHub.Run(ctx)
	go a.heartbeatLoop(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(ln) }()

	res, runErr := a.runner.Run(ctx, paths, a.transition)
	a.resultMu.Lock()
	a.result = &res
	a.resultMu.Unlock()

	if runErr == nil && a.linger {
		a.log.Printf("run complete, monitor stays up until interrupted")
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			return err
		}
	}

	a.log.Printf("shutting down monitor")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = a.server.Shutdown(shutdownCtx)
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
		return err
	}
	return runErr
}

// BroadcastJSON forwards v to WebSocket clients, keeping log lines for
// /api/logs.
func (a *App) BroadcastJSON(v any) {
	if l, ok := v.(telemetry.LogLine); ok {
		a.appendLog(logEntry{TS: l.TS, Level: l.Level, Message: l.Message, Component: l.Component})
	}
	a.wsHub.BroadcastJSON(v)
}

func (a *App) appendLog(e logEntry) {
	a.logBufMu.Lock()
	defer a.logBufMu.Unlock()
	if len(a.logBuf) == logBufCap {
		copy(a.logBuf, a.logBuf[1:])
		a.logBuf = a.logBuf[:logBufCap-1]
	}
	a.logBuf = append(a.logBuf, e)
}

// transition atomically updates the state and broadcasts the change to all
// connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Load().(string)
	if old == newState {
		return
	}
	a.state.Store(newState)

	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, component, a.runID()),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, component, a.runID()),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

func (a *App) runID() string {
	if a.runner == nil {
		return ""
	}
	return a.runner.RunID()
}
