// Package pipeline drives one SatCheck run: resolve the catalog, fetch and
// merge element datasets for every observation date, scan each observation
// for close approaches, and write the reports. The run is a single
// sequential pass; observers follow it through Broadcaster events.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sexa "github.com/soniakeys/sexagesimal"

	"github.com/andres-luengo/SatCheck/internal/catalog"
	"github.com/andres-luengo/SatCheck/internal/config"
	"github.com/andres-luengo/SatCheck/internal/dataset"
	"github.com/andres-luengo/SatCheck/internal/elements"
	"github.com/andres-luengo/SatCheck/internal/fetch"
	"github.com/andres-luengo/SatCheck/internal/metrics"
	"github.com/andres-luengo/SatCheck/internal/observation"
	"github.com/andres-luengo/SatCheck/internal/predict"
	"github.com/andres-luengo/SatCheck/internal/report"
	"github.com/andres-luengo/SatCheck/internal/sky"
	"github.com/andres-luengo/SatCheck/internal/telemetry"
)

// Run states, in order.
const (
	StateBooting    = "BOOTING"
	StateCatalog    = "CATALOG"
	StateFetching   = "FETCHING"
	StateEvaluating = "EVALUATING"
	StateReporting  = "REPORTING"
	StateDone       = "DONE"
	StateFailed     = "FAILED"
)

const component = "pipeline"

// Broadcaster receives every event the run emits. *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Status is a snapshot of run progress.
type Status struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	Observations int       `json:"observations"`
	Evaluated    int       `json:"evaluated"`
	Flagged      int       `json:"flagged"`
	Unchecked    int       `json:"unchecked"`
	NoDataset    int       `json:"no_dataset"`
	Batches      int       `json:"batches"`
	BatchesDone  int       `json:"batches_done"`
	SummaryPath  string    `json:"summary_path,omitempty"`
}

// Options holds everything a Runner needs from the caller.
type Options struct {
	Cfg     config.Config
	Logger  *log.Logger
	Source  fetch.Source // nil runs against the datasets already on disk
	Catalog catalog.Source
	Reader  observation.Reader
	Engine  predict.Engine
	Metrics *metrics.Collector
}

// Result is what a completed run produced.
type Result struct {
	RunID       string
	Rows        []report.Row
	SummaryPath string
	FlaggedPath string
	Fetch       fetch.Summary
}

// Runner executes one run. Events may be set before Run to receive the
// run's telemetry.
type Runner struct {
	Events Broadcaster

	cfg     config.Config
	log     *log.Logger
	source  fetch.Source
	catalog catalog.Source
	reader  observation.Reader
	engine  predict.Engine
	metrics *metrics.Collector

	mu     sync.Mutex
	status Status
}

// New creates a runner in the BOOTING state with a fresh run id.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	engine := opts.Engine
	if engine == nil {
		engine = predict.SGP4Engine{}
	}
	return &Runner{
		cfg:     opts.Cfg,
		log:     logger,
		source:  opts.Source,
		catalog: opts.Catalog,
		reader:  opts.Reader,
		engine:  engine,
		metrics: opts.Metrics,
		status: Status{
			RunID: uuid.NewString(),
			State: StateBooting,
		},
	}
}

// RunID identifies this run in logs, telemetry, and the status endpoint.
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.RunID
}

// Status returns a copy of the current progress.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) update(fn func(*Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.mu.Unlock()
}

// Run checks every observation in paths. setState, if not nil, is called
// on every phase change. Per-observation and per-batch problems are
// logged and skipped; the returned error is reserved for cancellation and
// failures that leave no usable report.
func (r *Runner) Run(ctx context.Context, paths []string, setState func(string)) (Result, error) {
	started := time.Now()
	res := Result{RunID: r.RunID()}

	transition := func(s string) {
		r.update(func(st *Status) { st.State = s })
		if setState != nil {
			setState(s)
		}
	}

	r.update(func(st *Status) {
		st.StartedAt = started.UTC()
		st.Observations = len(paths)
	})
	r.logf("info", "run %s started: %d observation files, work dir %s", res.RunID, len(paths), r.cfg.Data.WorkDir)

	results := observation.Load(paths, r.reader, r.log)

	if err := r.fetchPhase(ctx, results, &res, transition); err != nil {
		return r.fail(res, err, transition)
	}

	transition(StateEvaluating)
	rows, err := r.evaluate(ctx, results)
	if err != nil {
		return r.fail(res, err, transition)
	}
	res.Rows = rows

	transition(StateReporting)
	if err := r.writeReports(&res); err != nil {
		return r.fail(res, err, transition)
	}

	elapsed := time.Since(started)
	r.metrics.RunFinished(elapsed, time.Now())
	if p := r.cfg.Metrics.Textfile; p != "" {
		if err := r.metrics.WriteTextfile(p); err != nil {
			r.logf("warn", "metrics textfile %s: %v", p, err)
		}
	}

	st := r.Status()
	r.emit(telemetry.RunSummary{
		Event:        r.event(telemetry.EventRunSummary),
		Observations: st.Observations,
		Flagged:      st.Flagged,
		Unchecked:    st.Unchecked,
		SummaryPath:  res.SummaryPath,
		DurationS:    int64(elapsed.Seconds()),
	})
	r.logf("info", "run %s finished in %s: %d flagged, %d unchecked, report %s",
		res.RunID, elapsed.Round(time.Second), st.Flagged, st.Unchecked, res.SummaryPath)
	transition(StateDone)
	return res, nil
}

func (r *Runner) fail(res Result, err error, transition func(string)) (Result, error) {
	r.logf("error", "run %s failed: %v", res.RunID, err)
	transition(StateFailed)
	return res, err
}

// fetchPhase resolves the catalog and downloads the datasets the readable
// observations need. Without a source it only logs.
func (r *Runner) fetchPhase(ctx context.Context, results []observation.Result, res *Result, transition func(string)) error {
	var obs []observation.Observation
	for _, o := range results {
		if o.Err == nil {
			obs = append(obs, o.Observation)
		}
	}

	if r.source == nil {
		r.logf("info", "fetching disabled, using datasets already in %s", r.cfg.Data.WorkDir)
		return nil
	}
	if len(obs) == 0 {
		r.logf("warn", "no readable observations, nothing to fetch")
		return nil
	}

	transition(StateCatalog)
	src := r.catalog
	src.Log = r.log
	ids, err := catalog.Load(ctx, src)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if len(ids) == 0 {
		r.logf("warn", "catalog is empty, nothing to fetch")
		return nil
	}

	transition(StateFetching)
	batches := r.cfg.Search.Batches
	f := &fetch.Fetcher{
		Source:    r.source,
		Dir:       r.cfg.Data.WorkDir,
		Overwrite: r.cfg.Search.Overwrite,
		Log:       r.log,
		Metrics:   r.metrics,
		OnProgress: func(p fetch.Progress) {
			r.update(func(st *Status) {
				st.Batches = p.Total
				st.BatchesDone = p.Done
			})
			r.emit(telemetry.Progress{
				Event:   r.event(telemetry.EventProgress),
				Stage:   "fetching",
				Percent: percent(p.Done, p.Total),
				Detail:  fmt.Sprintf("batch %d of %d for %s", p.Batch+1, batches, p.Date),
			})
		},
	}
	sum, err := f.FetchDatasets(ctx, obs, ids, batches)
	res.Fetch = sum
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	r.logf("info", "fetched %d dates (%d queries, %d reused, %d failed, %d already present)",
		len(sum.Dates), sum.Queries, sum.Reused, sum.Failed, len(sum.Skipped))
	for _, d := range sum.Incomplete {
		r.logf("warn", "elements for %s are incomplete; rerun to retry the failed batches", d)
	}
	return nil
}

// evaluate scans every observation against the dataset for its date.
func (r *Runner) evaluate(ctx context.Context, results []observation.Result) ([]report.Row, error) {
	dir := r.cfg.Data.WorkDir
	ix, err := dataset.Scan(dir)
	if err != nil {
		return nil, fmt.Errorf("scan datasets: %w", err)
	}
	r.logDebug("indexed %d dataset dates in %s", len(ix.Dates()), dir)

	loc := predict.Location{
		Lat: r.cfg.Observer.Latitude,
		Lon: r.cfg.Observer.Longitude,
		Alt: r.cfg.Observer.Altitude,
	}
	scanner := predict.NewScanner(r.engine, r.log)
	scanner.Metrics = r.metrics
	sets := make(map[dataset.Date]elements.Set)

	var rows []report.Row
	for i, res := range results {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		obs := res.Observation

		row, outcome, err := r.evaluateOne(obs, res.Err, ix, sets, scanner, loc)
		if err != nil {
			return rows, err
		}
		r.metrics.Observation(outcome)
		r.update(func(st *Status) {
			st.Evaluated++
			switch outcome {
			case metrics.ObsFlagged:
				st.Flagged++
			case metrics.ObsUnreadable:
				st.Unchecked++
			case metrics.ObsNoDataset:
				st.NoDataset++
			}
		})
		rows = append(rows, row)

		r.emit(telemetry.Progress{
			Event:   r.event(telemetry.EventProgress),
			Stage:   "evaluating",
			Percent: percent(i+1, len(results)),
			Detail:  fmt.Sprintf("%s: %s", filepath.Base(obs.ID), outcome),
		})
	}
	return rows, nil
}

// evaluateOne returns the report row for one observation. Observations
// that cannot be checked get a sentinel row and are not scanned.
func (r *Runner) evaluateOne(obs observation.Observation, headerErr error, ix *dataset.Index,
	sets map[dataset.Date]elements.Set, scanner *predict.Scanner, loc predict.Location) (report.Row, string, error) {

	if headerErr != nil {
		return report.Unchecked(obs.ID), metrics.ObsUnreadable, nil
	}

	target, err := sky.Parse(obs.RA, obs.Dec)
	if err != nil {
		r.logf("warn", "%s: bad pointing %q %q: %v", obs.ID, obs.RA, obs.Dec, err)
		return report.Unchecked(obs.ID), metrics.ObsUnreadable, nil
	}

	ds, ok := ix.Select(obs.Start)
	if !ok {
		r.logf("warn", "%s: no dataset %s in %s, skipping", obs.ID,
			dataset.DateOf(obs.Start).Filename(dataset.Merged), ix.Dir())
		return report.Unchecked(obs.ID), metrics.ObsNoDataset, nil
	}

	set, ok := sets[ds.Date]
	if !ok {
		set, err = ds.Load(r.log)
		if err != nil {
			r.logf("warn", "%s: %v, skipping", obs.ID, err)
			return report.Unchecked(obs.ID), metrics.ObsNoDataset, nil
		}
		sets[ds.Date] = set
		if !ds.Merged() {
			r.logf("warn", "%s: using %d unmerged batch files for %s", obs.ID, len(ds.Paths), ds.Date)
		}
		r.metrics.Records(len(set))
		r.logDebug("loaded %d element sets for %s from %s", len(set), ds.Date, strings.Join(ds.Paths, ", "))
	}

	r.logf("info", "evaluating %s: RA %v Dec %v from %s (MJD %.5f) against %d satellites",
		filepath.Base(obs.ID), sexa.FmtRA(target.RA), sexa.FmtAngle(target.Dec),
		obs.Start.Format(time.RFC3339), sky.TimeToMJD(obs.Start), len(set))

	hits := scanner.ScanTarget(set, target, obs.Start, loc)
	row, err := report.Aggregate(r.cfg.Data.WorkDir, obs.ID, hits, r.log)
	if err != nil {
		return row, "", fmt.Errorf("%s: %w", obs.ID, err)
	}

	if !row.Satellite {
		return row, metrics.ObsClean, nil
	}
	r.metrics.CloseApproaches(len(row.Summaries))
	for _, s := range row.Summaries {
		r.emit(telemetry.CloseApproach{
			Event:         r.event(telemetry.EventCloseApproach),
			Observation:   obs.ID,
			Satellite:     s.Satellite,
			MinSeparation: s.MinSeparation,
			MinTime:       s.MinTime,
			Samples:       len(hits[s.Satellite].Samples),
		})
		r.logf("info", "%s: %s within %.3f° at +%ds", filepath.Base(obs.ID), s.Satellite, s.MinSeparation, s.MinTime)
	}
	return row, metrics.ObsFlagged, nil
}

func (r *Runner) writeReports(res *Result) error {
	dir := r.cfg.Data.WorkDir
	res.SummaryPath = filepath.Join(dir, report.SummaryFile)
	res.FlaggedPath = filepath.Join(dir, report.FlaggedFile)

	if err := report.WriteSummary(res.SummaryPath, res.Rows); err != nil {
		return err
	}
	if err := report.WriteFlagged(res.FlaggedPath, res.Rows); err != nil {
		return err
	}
	r.update(func(st *Status) { st.SummaryPath = res.SummaryPath })
	r.logf("info", "summary saved to %s", res.SummaryPath)
	return nil
}

func (r *Runner) event(t telemetry.EventType) telemetry.Event {
	return telemetry.NewEvent(t, component, r.RunID())
}

func (r *Runner) emit(v any) {
	if r.Events != nil {
		r.Events.BroadcastJSON(v)
	}
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// logf writes to the logger and broadcasts the line, honouring the
// configured level.
func (r *Runner) logf(level, format string, args ...any) {
	floor, ok := levelRank[strings.ToLower(r.cfg.Logging.Level)]
	if !ok {
		floor = levelRank["info"]
	}
	if levelRank[level] < floor {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.log.Printf("[%s] %s", level, msg)
	r.emit(telemetry.LogLine{
		Event:   r.event(telemetry.EventLog),
		Level:   level,
		Message: msg,
	})
}

func (r *Runner) logDebug(format string, args ...any) {
	r.logf("debug", format, args...)
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}
