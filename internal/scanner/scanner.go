// Package scanner walks a directory tree and produces the inventory of
// eligible regular files as immutable models.FileRecord snapshots.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"gotidy/internal/logging"
	"gotidy/internal/metrics"
	"gotidy/internal/utils"
	"gotidy/pkg/models"
)

var (
	ErrNotRegular = errors.New("not a regular file")
	ErrIneligible = errors.New("excluded by filter")
)

// Options controls traversal and eligibility.
type Options struct {
	Recursive     bool
	ExcludeDirs   []string // exact directory names
	IncludeHidden bool
	PruneDirs     []string // absolute directories never descended into
	Filter        models.Filter
}

type Scanner struct {
	fs      afero.Fs
	opts    Options
	exclude map[string]bool
	prune   map[string]bool
	log     *slog.Logger
	metrics *metrics.Recorder
}

func New(fsys afero.Fs, opts Options, log *slog.Logger, rec *metrics.Recorder) *Scanner {
	s := &Scanner{
		fs:      fsys,
		opts:    opts,
		exclude: make(map[string]bool, len(opts.ExcludeDirs)),
		prune:   make(map[string]bool, len(opts.PruneDirs)),
		log:     logging.OrDiscard(log),
		metrics: rec,
	}
	for _, name := range opts.ExcludeDirs {
		s.exclude[name] = true
	}
	for _, dir := range opts.PruneDirs {
		s.prune[filepath.Clean(dir)] = true
	}
	return s
}

// ExcludedDir reports whether the directory at path (with base name name)
// is pruned from traversal: an exact excluded name, a hidden name, or one
// of the configured prune paths.
func (s *Scanner) ExcludedDir(path, name string) bool {
	if s.exclude[name] {
		return true
	}
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	return s.prune[filepath.Clean(path)]
}

// Scan walks root and returns the eligible records. Per-entry failures are
// logged and skipped; only an unusable root is returned as an error.
func (s *Scanner) Scan(ctx context.Context, root string) ([]models.FileRecord, error) {
	root = filepath.Clean(root)
	if !utils.IsDirectory(s.fs, root) {
		return nil, fmt.Errorf("scan root is not a directory: %s", root)
	}

	s.log.Info("scan started", "root", root, "recursive", s.opts.Recursive)

	var records []models.FileRecord
	unreadable := 0
	err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.log.Warn("cannot access entry, skipping", "path", path, "error", err)
			s.metrics.FileSkipped("unreadable")
			unreadable++
			return nil
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			if !s.opts.Recursive {
				return filepath.SkipDir
			}
			if s.ExcludedDir(path, info.Name()) {
				s.log.Debug("directory excluded", "path", path)
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			s.log.Debug("not a regular file, skipping", "path", path, "mode", info.Mode().String())
			s.metrics.FileSkipped("not_regular")
			return nil
		}

		rec := recordFromInfo(path, info)
		if !rec.Eligible(s.opts.Filter) {
			s.metrics.FileSkipped("ineligible")
			return nil
		}
		records = append(records, rec)
		s.metrics.FileScanned()
		if len(records)%1000 == 0 {
			s.log.Info("scan progress", "files", len(records))
		}
		return nil
	})
	if err != nil {
		return records, fmt.Errorf("scan of %s aborted: %w", root, err)
	}

	s.log.Info("scan completed", "root", root, "files", len(records), "unreadable", unreadable)
	return records, nil
}

// Stat builds a record for a single path, applying the same regular-file
// and eligibility rules as Scan.
func (s *Scanner) Stat(path string) (models.FileRecord, error) {
	info, err := utils.Lstat(s.fs, path)
	if err != nil {
		return models.FileRecord{}, err
	}
	if !info.Mode().IsRegular() {
		return models.FileRecord{}, ErrNotRegular
	}
	rec := recordFromInfo(filepath.Clean(path), info)
	if !rec.Eligible(s.opts.Filter) {
		return rec, ErrIneligible
	}
	return rec, nil
}

func recordFromInfo(path string, info os.FileInfo) models.FileRecord {
	created, accessed := fileTimes(path, info)
	return models.NewFileRecord(path, info.Size(), created, info.ModTime(), accessed)
}
