// Package organize wires the scanner, the duplicate engine, the archiver
// and the renamer into one run over a single inventory.
package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"gotidy/internal/archive"
	"gotidy/internal/config"
	"gotidy/internal/duplicates"
	"gotidy/internal/journal"
	"gotidy/internal/logging"
	"gotidy/internal/metrics"
	"gotidy/internal/mover"
	"gotidy/internal/naming"
	"gotidy/internal/scanner"
	"gotidy/pkg/models"
)

// Pass is one consumer of the inventory.
type Pass string

const (
	PassDedupe  Pass = "dedupe"
	PassArchive Pass = "archive"
	PassRename  Pass = "rename"
)

// ErrSkipped is returned by PlaceOne for paths that are not organized.
var ErrSkipped = errors.New("not organized")

// ErrUnknownPass is returned for a pass name that is not one of the
// Pass constants.
var ErrUnknownPass = errors.New("unknown pass")

// ParsePass resolves a pass name, ignoring case and surrounding spaces.
func ParsePass(s string) (Pass, error) {
	p := Pass(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PassDedupe, PassArchive, PassRename:
		return p, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownPass, s)
}

// ParsePasses resolves every name or fails on the first unknown one.
func ParsePasses(names []string) ([]Pass, error) {
	passes := make([]Pass, 0, len(names))
	for _, n := range names {
		p, err := ParsePass(n)
		if err != nil {
			return nil, err
		}
		passes = append(passes, p)
	}
	return passes, nil
}

/*
Engine runs one invocation:
 1. Scan() - build the inventory once
 2. Run(passes...) - feed it to each pass in order; a file moved by an
    earlier pass is skipped by the later ones
 3. Finish() - save the journal and the metrics textfile when configured

All placements share one Mover, so dry-run and real runs take the same path.
*/
type Engine struct {
	cfg     config.Config
	fs      afero.Fs
	log     *slog.Logger
	journal *journal.Journal
	metrics *metrics.Recorder

	mover     *mover.Mover
	scanner   *scanner.Scanner
	finder    *duplicates.Finder
	organizer *duplicates.Organizer
	archiver  *archive.Archiver
	renamer   naming.Renamer

	scanned int
	stats   models.RunStats
}

// NewEngine builds every component from cfg, which must already be
// validated and resolved. rec may be nil.
func NewEngine(cfg config.Config, fsys afero.Fs, log *slog.Logger, rec *metrics.Recorder) *Engine {
	log = logging.OrDiscard(log)
	j := journal.New(cfg.DryRun)
	log = log.With("run", j.RunID())
	m := mover.New(fsys, cfg.DryRun, log, j, rec)

	return &Engine{
		cfg:     cfg,
		fs:      fsys,
		log:     log,
		journal: j,
		metrics: rec,
		mover:   m,
		scanner: scanner.New(fsys, scanner.Options{
			Recursive:     cfg.Scan.Recursive,
			ExcludeDirs:   cfg.Scan.ExcludeDirs,
			IncludeHidden: cfg.Scan.IncludeHidden,
			PruneDirs:     []string{cfg.Duplicates.Dir},
			Filter:        models.NewFilter(cfg.Scan.ExcludeExts, cfg.Scan.MinSize.Int64(), cfg.Scan.MaxSize.Int64()),
		}, log, rec),
		finder:    duplicates.NewFinder(fsys, cfg.Duplicates.HashWorkers, log, rec),
		organizer: duplicates.NewOrganizer(cfg.Duplicates, j.RunID(), m, log),
		archiver:  archive.New(cfg.Archive, cfg.Rename, m, log),
		renamer:   naming.NewRenamer(cfg.Rename),
	}
}

func (e *Engine) Journal() *journal.Journal { return e.journal }

func (e *Engine) Logger() *slog.Logger { return e.log }

// Scan builds the inventory of the configured root.
func (e *Engine) Scan(ctx context.Context) ([]models.FileRecord, error) {
	records, err := e.scanner.Scan(ctx, e.cfg.Scan.Root)
	e.scanned += len(records)
	return records, err
}

// Dedupe finds duplicate groups in records and moves them into the
// duplicates directory.
func (e *Engine) Dedupe(ctx context.Context, records []models.FileRecord) ([]duplicates.Manifest, error) {
	remaining := make([]models.FileRecord, 0, len(records))
	for _, rec := range records {
		if !e.mover.Vacated(rec.Path) {
			remaining = append(remaining, rec)
		}
	}
	groups, err := e.finder.Find(ctx, remaining)
	e.stats.Add(e.finder.Stats())
	if err != nil {
		return nil, fmt.Errorf("duplicate search failed: %w", err)
	}
	return e.organizer.Process(ctx, groups)
}

// Archive moves records under the archive root.
func (e *Engine) Archive(ctx context.Context, records []models.FileRecord) (int, error) {
	return e.archiver.ArchiveAll(ctx, records)
}

// Rename renames records in place.
func (e *Engine) Rename(ctx context.Context, records []models.FileRecord) (int, error) {
	return e.renamer.RenameAll(ctx, e.mover, records, e.log)
}

// Run scans once and runs passes in the given order. Every pass is checked
// before the scan, so an unknown one fails without touching anything. A pass
// stops early only on cancellation; per-file problems are logged and counted.
func (e *Engine) Run(ctx context.Context, passes ...Pass) (models.RunStats, error) {
	for _, p := range passes {
		if _, err := ParsePass(string(p)); err != nil {
			return e.Stats(), err
		}
	}
	records, err := e.Scan(ctx)
	if err != nil {
		return e.Stats(), err
	}
	for _, p := range passes {
		switch p {
		case PassDedupe:
			_, err = e.Dedupe(ctx, records)
		case PassArchive:
			_, err = e.Archive(ctx, records)
		case PassRename:
			_, err = e.Rename(ctx, records)
		default:
			err = fmt.Errorf("%w %q", ErrUnknownPass, p)
		}
		if err != nil {
			return e.Stats(), err
		}
	}
	stats := e.Stats()
	e.log.Info("run completed",
		"dry_run", e.mover.DryRun(),
		"scanned", stats.Scanned,
		"groups", stats.Groups,
		"moved", stats.Moved,
		"renamed", stats.Renamed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

// PlaceOne archives a single path, as watch mode does for new files.
// Paths inside the archive or duplicates directories, inside an excluded
// directory, or failing the filters return ErrSkipped.
func (e *Engine) PlaceOne(path string) (string, bool, error) {
	path = filepath.Clean(path)
	if e.managed(path) || e.excluded(path) {
		return "", false, ErrSkipped
	}
	rec, err := e.scanner.Stat(path)
	if errors.Is(err, scanner.ErrNotRegular) || errors.Is(err, scanner.ErrIneligible) {
		return "", false, fmt.Errorf("%w: %v", ErrSkipped, err)
	}
	if err != nil {
		return "", false, err
	}
	e.scanned++
	e.mover.Reset()
	return e.archiver.Archive(rec)
}

// IgnoredDir reports whether watch mode should stay out of a directory:
// anything the scan prunes, plus the archive and duplicates directories.
func (e *Engine) IgnoredDir(path, name string) bool {
	return e.scanner.ExcludedDir(path, name) || e.managed(path)
}

// managed reports whether path lies under a directory this tool fills.
func (e *Engine) managed(path string) bool {
	return within(path, e.cfg.Archive.Root) || within(path, e.cfg.Duplicates.Dir)
}

// excluded reports whether any directory between the root and path is
// pruned by the scan rules, or path is not directly under the root in a
// flat scan.
func (e *Engine) excluded(path string) bool {
	rel, err := filepath.Rel(e.cfg.Scan.Root, filepath.Dir(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	if rel == "." {
		return false
	}
	if !e.cfg.Scan.Recursive {
		return true
	}
	dir := e.cfg.Scan.Root
	for _, name := range strings.Split(rel, string(filepath.Separator)) {
		dir = filepath.Join(dir, name)
		if e.scanner.ExcludedDir(dir, name) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Stats merges the counters of every component.
func (e *Engine) Stats() models.RunStats {
	s := e.stats
	s.Scanned = e.scanned
	s.Add(e.mover.Stats())
	return s
}

// Finish writes the journal and metrics files if they are configured.
func (e *Engine) Finish() error {
	stats := e.Stats()
	var errs []error
	if e.cfg.JournalFile != "" {
		if err := e.journal.Save(e.fs, e.cfg.JournalFile, stats); err != nil {
			errs = append(errs, fmt.Errorf("failed to save journal: %w", err))
		} else {
			e.log.Info("journal saved", "path", e.cfg.JournalFile, "operations", len(e.journal.Operations()))
		}
	}
	if e.cfg.MetricsFile != "" {
		e.metrics.MarkRun(time.Now())
		if err := e.metrics.WriteTextfile(e.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}
