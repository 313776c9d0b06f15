// Satctl is the command-line client for watching a satcheck run. It
// connects to the monitor over HTTP and WebSocket to query status and
// stream live events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/andres-luengo/SatCheck/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "satcheck monitor URL")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,close_approach)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --level are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "results":
		opts := ctl.ResultsOptions{JSON: *jsonOut}
		resFlags := pflag.NewFlagSet("results", pflag.ContinueOnError)
		resFlags.BoolVar(&opts.FlaggedOnly, "flagged", false, "Only show observations with a close approach")
		_ = resFlags.Parse(subArgs)
		err = ctl.Results(*host, opts)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (debug, info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "watch":
		opts := ctl.WatchOptions{Filter: *filter, JSON: *jsonOut}
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.BoolVar(&opts.UntilDone, "until-done", false, "Exit when the run reaches DONE or FAILED")
		_ = watchFlags.Parse(subArgs)
		err = ctl.Watch(*host, opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  satctl: SatCheck monitor CLI

  USAGE
    satctl [flags] <command> [command-flags]

  COMMANDS
    status          Show run state, progress, and work directory
    health          Check monitor and run health
    version         Show CLI and satcheck version information
    config          Show the running configuration
    results         Show per-observation results of a finished run
    logs            Show recent run log messages
    watch           Stream live events (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Monitor base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    results:
        --flagged           Only show flagged observations

    logs:
        --level LEVEL       Filter by log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

    watch:
        --until-done        Exit when the run reaches DONE or FAILED

  EXAMPLES
    satctl status
    satctl --json status
    satctl --host http://10.0.0.5:8090 --filter close_approach,run_summary watch
    satctl watch --until-done
    satctl results --flagged
    satctl logs --level warn --limit 20
`)
}
