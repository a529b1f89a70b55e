package duplicates

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"gotidy/internal/config"
	"gotidy/internal/logging"
	"gotidy/internal/mover"
	"gotidy/pkg/models"
)

// SortMembers returns members ordered by keep policy; the first one keeps
// its name. Ties are broken by path so the order is total.
func SortMembers(members []models.FileRecord, keep config.KeepPolicy) []models.FileRecord {
	out := make([]models.FileRecord, len(members))
	copy(out, members)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch keep {
		case config.KeepOldest:
			if !a.ModifiedAt.Equal(b.ModifiedAt) {
				return a.ModifiedAt.Before(b.ModifiedAt)
			}
		case config.KeepShortestPath:
			if len(a.Path) != len(b.Path) {
				return len(a.Path) < len(b.Path)
			}
		default:
			if !a.ModifiedAt.Equal(b.ModifiedAt) {
				return a.ModifiedAt.After(b.ModifiedAt)
			}
		}
		return a.Path < b.Path
	})
	return out
}

// CopyName is the name given to the member at position idx > 0.
func CopyName(rec models.FileRecord, idx int) string {
	return fmt.Sprintf("%s_copy%d%s", rec.Stem(), idx, rec.Suffix())
}

// GroupDirName names the directory of the n-th group of a run.
func GroupDirName(n int, hash string) string {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("group_%04d_%s", n, hash)
}

type Organizer struct {
	dir   string
	keep  config.KeepPolicy
	runID string
	mover *mover.Mover
	log   *slog.Logger

	// counter restarts with every Organizer, i.e. every run; numbers taken
	// on disk are skipped.
	counter int
}

func NewOrganizer(cfg config.DuplicatesConfig, runID string, m *mover.Mover, log *slog.Logger) *Organizer {
	return &Organizer{
		dir:   cfg.Dir,
		keep:  cfg.Keep,
		runID: runID,
		mover: m,
		log:   logging.OrDiscard(log),
	}
}

// Process relocates each group. Failures on one member or one group are
// logged and processing continues; only cancellation stops it. It returns
// the manifests of processed groups.
func (o *Organizer) Process(ctx context.Context, groups []models.DuplicateGroup) ([]Manifest, error) {
	var manifests []Manifest
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return manifests, err
		}
		m, ok := o.processGroup(g)
		if ok {
			manifests = append(manifests, m)
		}
	}
	o.log.Info("duplicate groups organized", "groups", len(manifests), "dir", o.dir)
	return manifests, nil
}

func (o *Organizer) processGroup(g models.DuplicateGroup) (Manifest, bool) {
	var members []models.FileRecord
	for _, rec := range g.Members {
		if o.mover.Vacated(rec.Path) {
			o.log.Debug("already relocated, dropping from group", "path", rec.Path, "hash", g.Hash)
			continue
		}
		members = append(members, rec)
	}
	if len(members) < 2 {
		o.log.Info("duplicate group no longer has two members, skipping", "hash", g.Hash)
		return Manifest{}, false
	}

	// Skip numbers whose directory an earlier run left behind.
	var dir string
	for {
		o.counter++
		dir = filepath.Join(o.dir, GroupDirName(o.counter, g.Hash))
		if !o.mover.Exists(dir) {
			break
		}
	}
	m := Manifest{
		Number: o.counter,
		RunID:  o.runID,
		Hash:   g.Hash,
		Size:   g.Size,
		Keep:   o.keep,
	}

	placed := 0
	for idx, rec := range SortMembers(members, o.keep) {
		name := rec.Name
		if idx > 0 {
			name = CopyName(rec, idx)
		}
		p := Placement{Record: rec}
		dst, moved, err := o.mover.Place(models.OpDuplicate, rec, dir, name)
		switch {
		case err != nil:
			p.Reason = err.Error()
		case moved:
			p.Destination = dst
			placed++
		default:
			p.Destination = dst
			p.Reason = "already in place"
		}
		m.Members = append(m.Members, p)
	}

	if placed == 0 {
		o.log.Warn("no member of duplicate group could be moved", "hash", g.Hash, "count", len(members))
		return m, true
	}
	if _, err := o.mover.WriteFile(dir, ManifestName, m.Render()); err != nil {
		o.log.Error("failed to write manifest", "dir", dir, "error", err)
	}
	o.log.Info("duplicate group organized", "group", m.Number, "hash", g.Hash, "count", len(members), "dir", dir)
	return m, true
}
