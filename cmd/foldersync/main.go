// Package main provides the foldersync CLI application.
//
// foldersync keeps an in-memory mirror of one or more folder trees in step
// with disk, printing every synchronization as it happens and recording it
// in a persistent journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set during build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("foldersync", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(out, "foldersync %s\n", version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return showUsage(out)
	}

	command, cmdArgs := rest[0], rest[1:]

	switch command {
	case "watch":
		cmd, err := parseWatchCommand(*configPath, cmdArgs)
		if err != nil {
			return err
		}
		cmd.out = out
		return cmd.Execute(ctx)
	case "scan":
		cmd, err := parseScanCommand(*configPath, cmdArgs)
		if err != nil {
			return err
		}
		cmd.out = out
		return cmd.Execute()
	case "status":
		cmd, err := parseStatusCommand(*configPath, cmdArgs)
		if err != nil {
			return err
		}
		cmd.out = out
		return cmd.Execute()
	case "config":
		cmd := &configCommand{configPath: *configPath, out: out}
		return cmd.Execute(cmdArgs)
	case "help":
		return showUsage(out)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// showUsage displays usage information.
func showUsage(out io.Writer) error {
	usage := `foldersync - live folder tree mirroring

Usage:
  foldersync [flags] <command> [command flags] [roots...]

Commands:
  watch       Mirror roots and print every synchronization until interrupted
  scan        Scan roots once and print the folder tree
  status      Show journal root states and recent synchronizations
  config      Configuration management (show, path, init)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Watch Command Flags:
  -format        Output format (table, json, simple)
  -metrics-addr  Serve Prometheus metrics on this address
  -debounce      Quiet period before changes are synchronized
  -timestamps    Show timestamps on updates

Scan Command Flags:
  -format     Output format (table, json, simple)
  -hidden     Include dot files and dot folders

Status Command Flags:
  -limit      Number of recent records to show (0 for all)
  -format     Output format (table, json, simple)

Examples:
  # Mirror the configured roots
  foldersync watch

  # Mirror two folders and expose metrics
  foldersync watch -metrics-addr :9400 ~/Documents ~/Projects

  # Print updates as JSON lines
  foldersync watch -format json ~/Documents

  # Print a folder tree
  foldersync scan ~/Projects

  # Show the last 50 synchronizations
  foldersync status -limit 50

Environment:
  FOLDERSYNC_ROOTS, FOLDERSYNC_CONFIG, FOLDERSYNC_DB,
  FOLDERSYNC_LOG_LEVEL, FOLDERSYNC_DEBOUNCE, FOLDERSYNC_METRICS_ADDR

Version: %s
`

	fmt.Fprintf(out, usage, version)
	return nil
}
