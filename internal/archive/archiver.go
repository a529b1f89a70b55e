// Package archive moves files under the archive root into a directory
// computed from their date, type category and name.
package archive

import (
	"context"
	"log/slog"
	"path/filepath"

	"gotidy/internal/config"
	"gotidy/internal/logging"
	"gotidy/internal/mover"
	"gotidy/internal/naming"
	"gotidy/pkg/models"
)

type Archiver struct {
	root    string
	policy  Policy
	rename  bool
	renamer naming.Renamer
	mover   *mover.Mover
	log     *slog.Logger
}

func New(cfg config.ArchiveConfig, rename config.RenameConfig, m *mover.Mover, log *slog.Logger) *Archiver {
	return &Archiver{
		root:    cfg.Root,
		policy:  NewPolicy(cfg),
		rename:  cfg.Rename,
		renamer: naming.NewRenamer(rename),
		mover:   m,
		log:     logging.OrDiscard(log),
	}
}

// Target computes the destination directory and file name for rec before
// any disambiguation.
func (a *Archiver) Target(rec models.FileRecord) (dir, name string) {
	name = rec.Name
	if a.rename {
		if n, ok := a.renamer.NewName(rec); ok {
			name = n
		}
	}
	return filepath.Join(a.root, a.policy.Destination(rec, name)), name
}

// Archive places one file. moved is false when the file already sits at
// its target.
func (a *Archiver) Archive(rec models.FileRecord) (dst string, moved bool, err error) {
	dir, name := a.Target(rec)
	return a.mover.Place(models.OpArchive, rec, dir, name)
}

// ArchiveAll archives records in order. Per-file errors are logged by the
// mover and do not stop the loop; only cancellation does.
func (a *Archiver) ArchiveAll(ctx context.Context, records []models.FileRecord) (moved int, err error) {
	a.log.Info("archive started", "files", len(records), "root", a.root)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if a.mover.Vacated(rec.Path) {
			a.log.Debug("already relocated, skipping", "path", rec.Path)
			continue
		}
		if _, ok, err := a.Archive(rec); err == nil && ok {
			moved++
		}
	}
	a.log.Info("archive completed", "moved", moved)
	return moved, nil
}
