package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0xmhha/foldersync/pkg/config"
	"github.com/0xmhha/foldersync/pkg/display"
	"github.com/0xmhha/foldersync/pkg/journal"
	"github.com/0xmhha/foldersync/pkg/logger"
	"github.com/0xmhha/foldersync/pkg/metrics"
	"github.com/0xmhha/foldersync/pkg/mirror"
	"github.com/0xmhha/foldersync/pkg/tree"
	"github.com/0xmhha/foldersync/pkg/watcher"
	"github.com/thejerf/suture/v4"
)

// loadConfig loads configuration and applies root arguments, which replace
// the configured roots.
func loadConfig(configPath string, roots []string) (*config.Config, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if len(roots) > 0 {
		cfg.Roots = roots
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

func treeOptions(cfg *config.Config) tree.Options {
	return tree.Options{
		IgnorePatterns: cfg.Tree.IgnorePatterns,
		IgnoreHidden:   cfg.Tree.IgnoreHidden,
		AttrCacheSize:  cfg.Tree.AttrCacheSize,
		AttrCacheTTL:   cfg.Tree.AttrCacheTTL,
	}
}

func mirrorConfig(cfg *config.Config) mirror.Config {
	return mirror.Config{
		Roots: cfg.Roots,
		Tree:  treeOptions(cfg),
		Watcher: watcher.Config{
			DebounceInterval:     cfg.Watcher.DebounceInterval,
			MaxBatch:             cfg.Watcher.MaxBatch,
			OverflowWarnInterval: cfg.Watcher.OverflowWarnInterval,
		},
		QueueSize: cfg.Watcher.QueueSize,
	}
}

func openJournal(cfg *config.Config, log logger.Logger) (journal.Journal, error) {
	j, err := journal.Open(journal.Config{
		DBPath:  cfg.Storage.DBPath,
		Timeout: cfg.Storage.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// newFormatter picks the output format: the flag wins over the
// configuration, and with neither set a terminal gets a table while
// anything else gets JSON.
func newFormatter(flagFormat string, cfg *config.Config, out io.Writer) (display.Formatter, error) {
	name := flagFormat
	if name == "" {
		name = cfg.Display.Format
	}

	format, err := display.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = display.FormatTable
		if f, ok := out.(*os.File); ok {
			format = display.DefaultFormat(int(f.Fd()))
		}
	}

	return display.New(display.Config{
		Format:         format,
		ShowTimestamps: cfg.Display.ShowTimestamps,
	}), nil
}

// watchCommand mirrors the roots until interrupted.
type watchCommand struct {
	configPath  string
	format      string
	metricsAddr string
	debounce    time.Duration
	timestamps  bool
	roots       []string
	out         io.Writer
}

// parseWatchCommand parses watch flags. Remaining arguments are roots.
func parseWatchCommand(configPath string, args []string) (*watchCommand, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	format := fs.String("format", "", "output format (table, json, simple)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	debounce := fs.Duration("debounce", 0, "quiet period before changes are synchronized (e.g., 250ms)")
	timestamps := fs.Bool("timestamps", false, "show timestamps on updates")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &watchCommand{
		configPath:  configPath,
		format:      *format,
		metricsAddr: *metricsAddr,
		debounce:    *debounce,
		timestamps:  *timestamps,
		roots:       fs.Args(),
		out:         os.Stdout,
	}, nil
}

// Execute runs the watch command until ctx is done or the mirror stops.
func (c *watchCommand) Execute(ctx context.Context) error {
	cfg, err := loadConfig(c.configPath, c.roots)
	if err != nil {
		return err
	}
	if c.debounce > 0 {
		cfg.Watcher.DebounceInterval = c.debounce
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Addr = c.metricsAddr
	}
	if c.timestamps {
		cfg.Display.ShowTimestamps = true
	}

	log := newLogger(cfg)

	formatter, err := newFormatter(c.format, cfg, c.out)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			log.Error("failed to close journal", "error", err)
		}
	}()

	m, err := mirror.New(mirrorConfig(cfg), j, log)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Error("failed to close mirror", "error", err)
		}
	}()

	sup := suture.New("foldersync", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn("supervisor event", "event", e.String())
		},
		Timeout: serviceTimeout,
	})

	ms := newMirrorService(m)
	sup.Add(ms)
	sup.Add(&printerService{updates: m.Updates(), formatter: formatter, out: c.out, log: log})

	if cfg.Metrics.Addr != "" {
		reg, err := metrics.NewRegistry(m)
		if err != nil {
			return fmt.Errorf("failed to create metrics registry: %w", err)
		}
		sup.Add(&metricsService{addr: cfg.Metrics.Addr, registry: reg, log: log})
	}

	supErr := sup.Serve(ctx)

	if err := ms.Err(); err != nil {
		return err
	}
	if supErr != nil && !errors.Is(supErr, context.Canceled) && !errors.Is(supErr, suture.ErrTerminateSupervisorTree) {
		return supErr
	}

	return formatter.FormatStats(c.out, m.Stats())
}

// scanCommand prints the folder tree of each root.
type scanCommand struct {
	configPath string
	format     string
	hidden     bool
	roots      []string
	out        io.Writer
}

// parseScanCommand parses scan flags. Remaining arguments are roots.
func parseScanCommand(configPath string, args []string) (*scanCommand, error) {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	format := fs.String("format", "", "output format (table, json, simple)")
	hidden := fs.Bool("hidden", false, "include dot files and dot folders")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &scanCommand{
		configPath: configPath,
		format:     *format,
		hidden:     *hidden,
		roots:      fs.Args(),
		out:        os.Stdout,
	}, nil
}

// Execute runs the scan command.
func (c *scanCommand) Execute() error {
	cfg, err := loadConfig(c.configPath, c.roots)
	if err != nil {
		return err
	}
	if c.hidden {
		cfg.Tree.IgnoreHidden = false
	}

	log := newLogger(cfg)

	formatter, err := newFormatter(c.format, cfg, c.out)
	if err != nil {
		return err
	}

	t, err := tree.New(treeOptions(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to create tree: %w", err)
	}

	scanned := 0
	for _, path := range cfg.Roots {
		root, err := t.AddRoot(path)
		if err != nil {
			log.Warn("skipping root", "path", path, "error", err)
			continue
		}
		scanned++
		if err := formatter.FormatTree(c.out, root); err != nil {
			return err
		}
	}

	if scanned == 0 {
		return mirror.ErrNoRoots
	}
	return nil
}

// statusCommand prints the journal.
type statusCommand struct {
	configPath string
	format     string
	limit      int
	out        io.Writer
}

// parseStatusCommand parses status flags.
func parseStatusCommand(configPath string, args []string) (*statusCommand, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	format := fs.String("format", "", "output format (table, json, simple)")
	limit := fs.Int("limit", 20, "number of recent records to show (0 for all)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *limit < 0 {
		return nil, fmt.Errorf("invalid limit %d: must be >= 0", *limit)
	}

	return &statusCommand{
		configPath: configPath,
		format:     *format,
		limit:      *limit,
		out:        os.Stdout,
	}, nil
}

// Execute runs the status command.
func (c *statusCommand) Execute() error {
	cfg, err := loadConfig(c.configPath, nil)
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	formatter, err := newFormatter(c.format, cfg, c.out)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			log.Error("failed to close journal", "error", err)
		}
	}()

	roots, err := j.Roots()
	if err != nil {
		return fmt.Errorf("failed to read root states: %w", err)
	}
	if err := formatter.FormatRoots(c.out, roots); err != nil {
		return err
	}

	records, err := j.Records(c.limit)
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	return formatter.FormatRecords(c.out, records)
}
