// Command lockline-log views and analyzes lockline protocol traces.
//
// Traces are written by lockline-controller, lockline-panel and lockline-sim
// when started with -protocol-log.
//
// Usage:
//
//	lockline-log <command> [flags] <file.llog>
//
// Commands:
//
//	view     View the trace in human-readable form
//	export   Export the trace as JSON lines or CSV
//	filter   Write matching events to a new trace file
//	stats    Show session outcomes and event counts
//
// Examples:
//
//	# View controller session events only
//	lockline-log view -role controller -category state controller.llog
//
//	# Everything that happened in one session
//	lockline-log view -session 5f0c2a1e-... controller.llog
//
//	# Export to CSV
//	lockline-log export -format csv -o trace.csv sim.llog
//
//	# Show statistics
//	lockline-log stats sim.llog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lockline/lockline-go/cmd/lockline-log/commands"
)

const usage = `lockline-log - Lockline Protocol Trace Analyzer

Usage:
  lockline-log <command> [flags] <file.llog>

Commands:
  view     View the trace in human-readable form
  export   Export the trace as JSON lines or CSV
  filter   Write matching events to a new trace file
  stats    Show session outcomes and event counts

Use "lockline-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "lockline-log %s - %s\n\nUsage:\n  lockline-log %s [flags] <file.llog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var o commands.FilterOptions
	fs.StringVar(&o.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&o.SessionID, "session", "", "Filter by controller session ID")
	fs.StringVar(&o.Role, "role", "", "Filter by node (panel, controller)")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, wire, node)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out, local)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, state, error)")
	return &o
}

// tracePath parses args and returns the single positional trace path.
func tracePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) error {
	fs := newFlagSet("view", "View the trace in human-readable form")
	opts := filterFlags(fs)
	path := tracePath(fs, args)
	return commands.RunView(path, *opts, os.Stdout)
}

func runExport(args []string) error {
	fs := newFlagSet("export", "Export the trace as JSON lines or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := tracePath(fs, args)

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, w)
}

func runFilter(args []string) error {
	fs := newFlagSet("filter", "Write matching events to a new trace file")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path := tracePath(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	return commands.RunFilter(path, *output, *opts, os.Stdout)
}

func runStats(args []string) error {
	fs := newFlagSet("stats", "Show session outcomes and event counts")
	path := tracePath(fs, args)
	return commands.RunStats(path, os.Stdout)
}
