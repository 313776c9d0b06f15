// Satcheck checks radio-telescope observations for satellites passing near
// the pointing direction.
//
// It resolves the satellite catalog, fetches the element sets each
// observation date needs from Space-Track, propagates every satellite across
// the observation window, and writes summary and per-satellite CSVs. With
// --monitor it also serves run status, logs, metrics and a WebSocket event
// stream for satctl. Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/andres-luengo/SatCheck/internal/app"
	"github.com/andres-luengo/SatCheck/internal/catalog"
	"github.com/andres-luengo/SatCheck/internal/config"
	"github.com/andres-luengo/SatCheck/internal/metrics"
	"github.com/andres-luengo/SatCheck/internal/observation"
	"github.com/andres-luengo/SatCheck/internal/pipeline"
	"github.com/andres-luengo/SatCheck/internal/predict"
	"github.com/andres-luengo/SatCheck/internal/spacetrack"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "satcheck.toml", "Path to config TOML (optional)")
		dir        = pflag.StringP("dir", "d", "", "Directory to search for observation files")
		pattern    = pflag.StringP("pattern", "p", "", "Glob pattern used with --dir (default *.h5)")
		listFile   = pflag.StringP("file", "f", "", "File listing observation paths, one per line")
		manifest   = pflag.String("manifest", "", "CSV of observation headers (path,tstart,src_raj,src_dej)")
		idsFile    = pflag.String("ids-file", "", "File of NORAD catalog numbers to query instead of the UCS database")
		workDir    = pflag.StringP("work-dir", "w", "", "Directory for datasets and reports")
		batches    = pflag.IntP("batches", "b", 0, "Number of Space-Track queries per date")
		overwrite  = pflag.Bool("overwrite", false, "Re-fetch datasets that already exist")
		engine     = pflag.String("engine", "", "Propagation engine: sgp4 or go-satellite")
		identity   = pflag.String("identity", "", "Space-Track account (default from config, "+config.EnvIdentity+" or .env)")
		password   = pflag.String("password", "", "Space-Track password (default from config, "+config.EnvPassword+" or .env)")
		skipFetch  = pflag.Bool("skip-fetch", false, "Use only datasets already in the work directory")
		monitor    = pflag.String("monitor", "", "Serve the monitor on this address while running")
		linger     = pflag.Bool("linger", false, "Keep the monitor up after the run until interrupted")
		textfile   = pflag.String("metrics-textfile", "", "Write run metrics to this Prometheus textfile")
		debug      = pflag.Bool("debug", false, "Log every request and loaded dataset")
	)
	pflag.Lookup("monitor").NoOptDefVal = config.Default().Monitor.Bind
	pflag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	applyFlags(&cfg, flagValues{
		pattern:   *pattern,
		workDir:   *workDir,
		batches:   *batches,
		overwrite: *overwrite,
		engine:    *engine,
		monitor:   *monitor,
		textfile:  *textfile,
		debug:     *debug,
	})
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := log.New(os.Stdout, "satcheck ", log.LstdFlags|log.Lmicroseconds)

	paths, err := observation.Discover(observation.Input{
		Dir:      *dir,
		Pattern:  cfg.Search.Pattern,
		ListFile: *listFile,
		Paths:    pflag.Args(),
	})
	if err != nil {
		if errors.Is(err, observation.ErrNoInput) {
			logger.Fatalf("no observations: pass --dir, --file, or file paths")
		}
		logger.Fatalf("find observations: %v", err)
	}
	if len(paths) == 0 {
		logger.Printf("no files matched, the summary will be empty")
	}

	var reader observation.Reader
	if *manifest != "" {
		m, err := observation.ReadManifest(*manifest)
		if err != nil {
			logger.Fatalf("manifest: %v", err)
		}
		reader.Manifest = m
	}

	eng, err := predict.EngineByName(cfg.Predict.Engine)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	if err := os.MkdirAll(cfg.Data.WorkDir, 0o755); err != nil {
		logger.Fatalf("work dir: %v", err)
	}

	m := metrics.New()
	opts := pipeline.Options{
		Cfg:    cfg,
		Logger: logger,
		Catalog: catalog.Source{
			IDs:        cfg.Catalog.IDs,
			IDsFile:    *idsFile,
			URL:        cfg.Catalog.UCSURL,
			WorkDir:    cfg.Data.WorkDir,
			CutoffYear: cfg.Catalog.LaunchCutoffYear,
			Client:     &http.Client{Timeout: cfg.SpaceTrack.Timeout()},
		},
		Reader:  reader,
		Engine:  eng,
		Metrics: m,
	}

	if *skipFetch {
		logger.Printf("--skip-fetch set, using datasets in %s", cfg.Data.WorkDir)
	} else {
		creds, err := config.ResolveCredentials(*identity, *password, cfg.SpaceTrack)
		if err != nil {
			logger.Fatalf("%v (use --skip-fetch to run against existing datasets)", err)
		}
		client, err := spacetrack.New(spacetrack.Options{
			BaseURL:        cfg.SpaceTrack.BaseURL,
			Credentials:    creds,
			Timeout:        cfg.SpaceTrack.Timeout(),
			Delay:          cfg.SpaceTrack.RequestDelay(),
			FallbackLatest: cfg.SpaceTrack.FallbackLatest,
			Logger:         logger,
			Debug:          cfg.Logging.Debug(),
		})
		if err != nil {
			logger.Fatalf("space-track client: %v", err)
		}
		opts.Source = client
	}

	runner := pipeline.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.Enabled {
		a := app.New(app.Options{
			Logger:  logger,
			Cfg:     cfg,
			Bind:    cfg.Monitor.Bind,
			Runner:  runner,
			Metrics: m,
			Linger:  *linger,
		})
		err = a.Run(ctx, paths)
	} else {
		_, err = runner.Run(ctx, paths, nil)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Printf("interrupted")
			os.Exit(130)
		}
		logger.Fatalf("satcheck failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}

type flagValues struct {
	pattern   string
	workDir   string
	batches   int
	overwrite bool
	engine    string
	monitor   string
	textfile  string
	debug     bool
}

// applyFlags layers explicitly set flags over the file configuration.
func applyFlags(cfg *config.Config, f flagValues) {
	if f.pattern != "" {
		cfg.Search.Pattern = f.pattern
	}
	if f.workDir != "" {
		cfg.Data.WorkDir = f.workDir
	}
	if f.batches > 0 {
		cfg.Search.Batches = f.batches
	}
	if f.overwrite {
		cfg.Search.Overwrite = true
	}
	if f.engine != "" {
		cfg.Predict.Engine = f.engine
	}
	if f.monitor != "" {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Bind = f.monitor
	}
	if f.textfile != "" {
		cfg.Metrics.Textfile = f.textfile
	}
	if f.debug {
		cfg.Logging.Level = "debug"
	}
}
