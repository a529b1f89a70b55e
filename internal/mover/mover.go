// Package mover is the single placement layer. Every filesystem mutation of
// a run (moves, renames, directory creation, manifest writes) goes through a
// Mover, and dry-run is decided here and nowhere else: the caller computes
// the same destinations either way and the Mover either performs or logs.
//
// A Mover tracks the paths it has claimed and vacated during the run, so
// existence checks answer the same in dry-run as in a real run.
package mover

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"gotidy/internal/journal"
	"gotidy/internal/logging"
	"gotidy/internal/metrics"
	"gotidy/internal/naming"
	"gotidy/internal/utils"
	"gotidy/pkg/models"
)

var (
	// ErrVanished means the source is gone since the scan.
	ErrVanished = errors.New("file vanished since scan")
	// ErrChanged means the source no longer matches its scan snapshot.
	ErrChanged = errors.New("file changed since scan")
	// ErrRelocated means an earlier pass of this run already moved the file.
	ErrRelocated = errors.New("already relocated")
)

type Mover struct {
	fs      afero.Fs
	dryRun  bool
	log     *slog.Logger
	journal *journal.Journal
	metrics *metrics.Recorder

	mu      sync.Mutex
	claimed map[string]bool
	vacated map[string]bool
	stats   models.RunStats
}

// New returns a Mover. j and rec may be nil.
func New(fsys afero.Fs, dryRun bool, log *slog.Logger, j *journal.Journal, rec *metrics.Recorder) *Mover {
	return &Mover{
		fs:      fsys,
		dryRun:  dryRun,
		log:     logging.OrDiscard(log),
		journal: j,
		metrics: rec,
		claimed: make(map[string]bool),
		vacated: make(map[string]bool),
	}
}

// DryRun reports whether placements are only logged and journaled.
func (m *Mover) DryRun() bool { return m.dryRun }

// Exists reports whether path is taken: claimed by this run, or present on
// disk and not vacated by this run. The disk is checked on every call.
func (m *Mover) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exists(path)
}

func (m *Mover) exists(path string) bool {
	path = filepath.Clean(path)
	if m.claimed[path] {
		return true
	}
	if m.vacated[path] {
		return false
	}
	return utils.Exists(m.fs, path)
}

// Vacated reports whether this run already moved a file away from path.
func (m *Mover) Vacated(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vacated[filepath.Clean(path)]
}

// Reset forgets claimed and vacated paths. Watch mode calls it between
// independent placements so a path vacated earlier can be reused.
func (m *Mover) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.claimed)
	clear(m.vacated)
}

// Stats returns the placement counters so far.
func (m *Mover) Stats() models.RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Place moves rec into dir under name, disambiguated by the uniqueness
// rule; rec's own path counts as free. It returns the final destination and
// whether anything moved. A file already at its target is left alone and
// moved is false with a nil error.
//
// Skips and failures are logged, journaled and returned; the source is left
// where it was.
func (m *Mover) Place(kind models.OpKind, rec models.FileRecord, dir, name string) (dst string, moved bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := filepath.Clean(rec.Path)
	if err := m.verify(rec); err != nil {
		m.record(kind, src, "", models.StatusSkipped, err.Error())
		m.stats.Skipped++
		m.log.Warn("skipping file", "kind", kind, "path", src, "reason", err)
		return "", false, err
	}

	stem, suffix := naming.SplitName(name)
	dst = naming.UniquePath(filepath.Clean(dir), stem, suffix, naming.ExceptPath(naming.CheckerFunc(m.exists), src))
	if dst == src {
		m.stats.Unchanged++
		m.log.Debug("already in place", "path", src)
		return dst, false, nil
	}

	if err := m.mkdirAll(filepath.Dir(dst)); err != nil {
		err = fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
		m.fail(kind, src, dst, err)
		return dst, false, err
	}

	if m.dryRun {
		m.log.Info("dry-run: would move", "kind", kind, "src", src, "dst", dst)
	} else {
		if err := utils.MoveFile(m.fs, src, dst); err != nil {
			err = fmt.Errorf("failed to move %s: %w", src, err)
			m.fail(kind, src, dst, err)
			return dst, false, err
		}
		m.log.Info("moved", "kind", kind, "src", src, "dst", dst, "size", humanize.IBytes(uint64(rec.Size)))
	}

	m.claimed[dst] = true
	m.vacated[src] = true
	delete(m.vacated, dst)
	delete(m.claimed, src)

	m.record(kind, src, dst, m.doneStatus(), "")
	if kind == models.OpRename {
		m.stats.Renamed++
	} else {
		m.stats.Moved++
	}
	m.stats.Bytes += rec.Size
	return dst, true, nil
}

// WriteFile writes data into dir under name, disambiguated by the
// uniqueness rule. In dry-run nothing is written.
func (m *Mover) WriteFile(dir, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stem, suffix := naming.SplitName(name)
	dst := naming.UniquePath(filepath.Clean(dir), stem, suffix, naming.CheckerFunc(m.exists))

	if m.dryRun {
		m.log.Info("dry-run: would write", "kind", models.OpManifest, "dst", dst, "size", len(data))
	} else {
		if err := m.mkdirAll(dir); err != nil {
			err = fmt.Errorf("failed to create %s: %w", dir, err)
			m.fail(models.OpManifest, "", dst, err)
			return dst, err
		}
		if err := afero.WriteFile(m.fs, dst, data, 0644); err != nil {
			err = fmt.Errorf("failed to write %s: %w", dst, err)
			m.fail(models.OpManifest, "", dst, err)
			return dst, err
		}
		m.log.Info("wrote", "kind", models.OpManifest, "dst", dst)
	}

	m.claimed[dst] = true
	m.record(models.OpManifest, "", dst, m.doneStatus(), "")
	return dst, nil
}

// verify checks the scan snapshot against the disk.
func (m *Mover) verify(rec models.FileRecord) error {
	path := filepath.Clean(rec.Path)
	if m.vacated[path] {
		return ErrRelocated
	}
	info, err := utils.Lstat(m.fs, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVanished, err)
	}
	if !rec.Matches(info) {
		return ErrChanged
	}
	return nil
}

// mkdirAll rejects relative directories in both modes so a dry-run fails
// where the real run would.
func (m *Mover) mkdirAll(dir string) error {
	if m.dryRun {
		return utils.ValidatePath(dir)
	}
	return utils.EnsureDirectoryExists(m.fs, dir)
}

func (m *Mover) doneStatus() models.OpStatus {
	if m.dryRun {
		return models.StatusPlanned
	}
	return models.StatusDone
}

func (m *Mover) fail(kind models.OpKind, src, dst string, err error) {
	m.stats.Failed++
	m.record(kind, src, dst, models.StatusFailed, err.Error())
	m.log.Error("operation failed", "kind", kind, "src", src, "dst", dst, "error", err)
}

func (m *Mover) record(kind models.OpKind, src, dst string, status models.OpStatus, reason string) {
	m.metrics.Operation(kind, status)
	if m.journal == nil {
		return
	}
	m.journal.Record(models.Operation{
		Kind:        kind,
		Source:      src,
		Destination: dst,
		Status:      status,
		Reason:      reason,
		At:          time.Now(),
	})
}
