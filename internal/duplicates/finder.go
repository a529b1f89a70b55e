// Package duplicates finds files with identical content and moves every
// copy of a group into its own inspection directory next to a manifest.
package duplicates

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"gotidy/internal/logging"
	"gotidy/internal/metrics"
	"gotidy/internal/utils"
	"gotidy/pkg/models"
)

const progressEvery = 100

/*
Finder works in two phases:
 1. size pre-filter - only sizes shared by two or more records can hold
    duplicates, everything else is dropped without reading a byte.
 2. content hash - each candidate is streamed through SHA-256 by exactly one
    worker of a bounded pool. Results land in a slot per candidate, so the
    grouping does not depend on which worker finished first.

Groups come out in order of their first member in the input.
*/
type Finder struct {
	fs      afero.Fs
	workers int
	log     *slog.Logger
	metrics *metrics.Recorder
	stats   models.RunStats
}

func NewFinder(fsys afero.Fs, workers int, log *slog.Logger, rec *metrics.Recorder) *Finder {
	if workers < 1 {
		workers = 1
	}
	return &Finder{
		fs:      fsys,
		workers: workers,
		log:     logging.OrDiscard(log),
		metrics: rec,
	}
}

// Candidates returns the records whose size is shared with at least one
// other record, in input order. Repeated paths are counted once.
func Candidates(records []models.FileRecord) []models.FileRecord {
	seen := make(map[string]bool, len(records))
	unique := make([]models.FileRecord, 0, len(records))
	bySize := make(map[int64]int)
	for _, rec := range records {
		p := filepath.Clean(rec.Path)
		if seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, rec)
		bySize[rec.Size]++
	}

	out := make([]models.FileRecord, 0)
	for _, rec := range unique {
		if bySize[rec.Size] > 1 {
			out = append(out, rec)
		}
	}
	return out
}

// Find groups records by content. A file that cannot be read is logged and
// left out; only cancellation makes Find fail.
func (f *Finder) Find(ctx context.Context, records []models.FileRecord) ([]models.DuplicateGroup, error) {
	candidates := Candidates(records)
	f.stats = models.RunStats{Candidates: len(candidates)}
	if len(candidates) == 0 {
		f.log.Info("no duplicate candidates", "files", len(records))
		return nil, nil
	}
	f.log.Info("hashing duplicate candidates", "candidates", len(candidates), "workers", f.workers)

	hashes := make([]string, len(candidates))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, rec := range candidates {
		if gctx.Err() != nil {
			break
		}
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, n, err := utils.CalculateFileHash(f.fs, rec.Path)
			if err != nil {
				f.log.Warn("hash failed, skipping", "path", rec.Path, "error", err)
				f.metrics.FileSkipped("hash_failed")
				return nil
			}
			hashes[i] = sum
			f.metrics.FileHashed(n)
			if c := done.Add(1); c%progressEvery == 0 {
				f.log.Info("hash progress", "hashed", c, "total", len(candidates))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := groupByHash(candidates, hashes)
	f.stats.Hashed = int(done.Load())
	f.stats.Groups = len(groups)
	for range groups {
		f.metrics.DuplicateGroup()
	}
	f.log.Info("duplicate search completed", "hashed", done.Load(), "groups", len(groups))
	return groups, nil
}

// Stats reports candidates, hashed files and groups of the last Find.
func (f *Finder) Stats() models.RunStats {
	return f.stats
}

func groupByHash(records []models.FileRecord, hashes []string) []models.DuplicateGroup {
	index := make(map[string]int)
	var all []models.DuplicateGroup
	for i, rec := range records {
		h := hashes[i]
		if h == "" {
			continue
		}
		if gi, ok := index[h]; ok {
			all[gi].Members = append(all[gi].Members, rec)
			continue
		}
		index[h] = len(all)
		all = append(all, models.DuplicateGroup{Hash: h, Size: rec.Size, Members: []models.FileRecord{rec}})
	}

	groups := make([]models.DuplicateGroup, 0, len(all))
	for _, g := range all {
		if len(g.Members) > 1 {
			groups = append(groups, g)
		}
	}
	return groups
}
