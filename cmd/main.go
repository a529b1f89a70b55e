package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"gotidy/internal/archive"
	"gotidy/internal/config"
	"gotidy/internal/journal"
	"gotidy/internal/logging"
	"gotidy/internal/metrics"
	"gotidy/internal/organize"
	"gotidy/internal/watcher"
	"gotidy/pkg/models"
)

var version = "dev"

var (
	configPath    string
	listMode      bool
	passNames     []string
	rescanSeconds int
	reportStatus  string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "gotidy",
		Short:         "Organize a cluttered directory tree",
		Long:          "Finds duplicate files, archives files by date, type and name, and cleans up file names.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	registerFlags(rootCmd.PersistentFlags())

	scanCmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Report the files that would be organized",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().BoolVar(&listMode, "list", false, "Print every file")

	organizeCmd := &cobra.Command{
		Use:   "organize [root]",
		Short: "Run several passes over one scan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passes, err := organize.ParsePasses(passNames)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runPasses(cmd, args, passes...)
		},
	}
	organizeCmd.Flags().StringSliceVar(&passNames, "passes", []string{string(organize.PassDedupe), string(organize.PassArchive)}, "Passes to run, in order: dedupe, archive, rename")

	watchCmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Archive new files as they appear",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}
	watchCmd.Flags().IntVar(&rescanSeconds, "rescan", 0, "Also rescan watched directories every N seconds (0 disables)")

	reportCmd := &cobra.Command{
		Use:   "report <journal.json>",
		Short: "Print a run journal written with --journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := journal.Load(afero.NewOsFs(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}
			return printReport(os.Stdout, report, models.OpStatus(strings.ToLower(reportStatus)))
		},
	}
	reportCmd.Flags().StringVar(&reportStatus, "status", "", "Only show operations with this status: planned, done, skipped or failed")

	rootCmd.AddCommand(
		scanCmd,
		passCmd("dedupe", "Move duplicate files into the duplicates directory", organize.PassDedupe),
		passCmd("archive", "Move files under the archive root", organize.PassArchive),
		passCmd("rename", "Rename files in place", organize.PassRename),
		organizeCmd,
		watchCmd,
		reportCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("gotidy", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func passCmd(use, short string, pass organize.Pass) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [root]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPasses(cmd, args, pass)
		},
	}
}

// loadConfig reads the config file, overlays set flags and the root
// argument, then validates and resolves it. Any error here is a
// configuration error and nothing has been touched yet.
func loadConfig(cmd *cobra.Command, args []string) (config.Config, []string, error) {
	var (
		cfg config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOptional(os.Getenv("GOTIDY_CONFIG"))
	}
	if err != nil {
		return cfg, nil, err
	}

	applyFlags(cmd.Flags(), &cfg)
	if len(args) == 1 {
		cfg.Scan.Root = args[0]
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, warnings, nil
}

// setup builds the logger and the engine for one command.
func setup(cmd *cobra.Command, args []string) (*organize.Engine, config.Config, func(), error) {
	cfg, warnings, err := loadConfig(cmd, args)
	if err != nil {
		return nil, cfg, nil, err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("failed to open log: %w", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	engine := organize.NewEngine(cfg, afero.NewOsFs(), log, rec)
	engine.Logger().Info("configuration loaded",
		"root", cfg.Scan.Root,
		"archive_root", cfg.Archive.Root,
		"duplicates_dir", cfg.Duplicates.Dir,
		"dry_run", cfg.DryRun,
	)
	cleanup := func() {
		if err := engine.Finish(); err != nil {
			engine.Logger().Error("failed to write run artifacts", "error", err)
		}
		closeLog()
	}
	return engine, cfg, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPasses(cmd *cobra.Command, args []string, passes ...organize.Pass) error {
	engine, cfg, cleanup, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	stats, err := engine.Run(ctx, passes...)
	printStats(stats, cfg.DryRun)
	printFailures(os.Stdout, engine.Journal().Filter(models.StatusFailed))
	if errors.Is(err, context.Canceled) {
		engine.Logger().Warn("interrupted; every file is either untouched or fully placed")
		return nil
	}
	return err
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, _, cleanup, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	records, err := engine.Scan(ctx)
	if err != nil {
		return err
	}
	return printInventory(records, listMode)
}

func printInventory(records []models.FileRecord, list bool) error {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	var total int64
	byCategory := make(map[string]int)
	for _, rec := range records {
		total += rec.Size
		byCategory[archive.CategoryOf(rec.Ext)]++
		if list {
			fmt.Printf("%10s  %s  %s\n", humanize.IBytes(uint64(rec.Size)), rec.ModifiedAt.Format("2006-01-02 15:04"), rec.Path)
		}
	}

	fmt.Printf("\n%d files, %s\n", len(records), humanize.IBytes(uint64(total)))
	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-14s %d\n", name, byCategory[name])
	}
	return nil
}

func printStats(s models.RunStats, dryRun bool) {
	verb := "moved"
	if dryRun {
		verb = "would move"
	}
	fmt.Printf("\nscanned %d files, %d duplicate groups (%d candidates hashed)\n", s.Scanned, s.Groups, s.Hashed)
	fmt.Printf("%s %d, renamed %d (%s), unchanged %d, skipped %d, failed %d\n",
		verb, s.Moved, s.Renamed, humanize.IBytes(uint64(s.Bytes)), s.Unchanged, s.Skipped, s.Failed)
}

func printFailures(w io.Writer, ops []models.Operation) {
	if len(ops) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d operations failed:\n", len(ops))
	for _, op := range ops {
		fmt.Fprintf(w, "  %-9s %s: %s\n", op.Kind, op.Source, op.Reason)
	}
}

func printReport(w io.Writer, r *journal.Report, status models.OpStatus) error {
	switch status {
	case "", models.StatusPlanned, models.StatusDone, models.StatusSkipped, models.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	mode := "run"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s %s, started %s, took %s\n", mode, r.RunID,
		r.StartedAt.Format("2006-01-02 15:04:05"), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "scanned %d, groups %d, moved %d, renamed %d (%s), skipped %d, failed %d\n",
		r.Stats.Scanned, r.Stats.Groups, r.Stats.Moved, r.Stats.Renamed,
		humanize.IBytes(uint64(r.Stats.Bytes)), r.Stats.Skipped, r.Stats.Failed)

	for _, op := range r.Filter(status) {
		line := fmt.Sprintf("%-8s %-9s %s", op.Status, op.Kind, op.Source)
		if op.Destination != "" {
			line += " -> " + op.Destination
		}
		if op.Reason != "" {
			line += " (" + op.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, cfg, cleanup, err := setup(cmd, args)
	if err != nil {
		return err
	}
	defer cleanup()
	log := engine.Logger()

	w, err := watcher.NewWatcher(watcher.Options{
		Recursive: cfg.Scan.Recursive,
		SkipDir:   engine.IgnoredDir,
		Rescan:    time.Duration(rescanSeconds) * time.Second,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.AddWatch(cfg.Scan.Root); err != nil {
		return fmt.Errorf("failed to add watch path: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	log.Info("performing initial archive pass")
	if _, err := engine.Run(ctx, organize.PassArchive); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Warn("initial archive pass failed", "error", err)
	}

	w.Start()
	log.Info("watching for new files, press Ctrl+C to stop", "root", cfg.Scan.Root, "dirs", w.WatchedDirs())

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			printStats(engine.Stats(), cfg.DryRun)
			return nil

		case event := <-w.Changes():
			handleEvent(engine, log, event)

		case err := <-w.Errors():
			log.Warn("watcher error", "error", err)
		}
	}
}

func handleEvent(engine *organize.Engine, log *slog.Logger, event models.FileEvent) {
	_, _, err := engine.PlaceOne(event.Path)
	switch {
	case err == nil:
	case errors.Is(err, organize.ErrSkipped):
		log.Debug("event ignored", "path", event.Path, "op", event.Operation, "reason", err)
	case errors.Is(err, os.ErrNotExist):
		log.Debug("file gone before it could be placed", "path", event.Path)
	default:
		log.Warn("failed to place file", "path", event.Path, "op", event.Operation, "error", err)
	}
}
