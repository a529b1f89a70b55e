package naming

import (
	"context"
	"log/slog"

	"gotidy/internal/logging"
	"gotidy/pkg/models"
)

// Placer performs a single placement of rec into dir under name.
type Placer interface {
	Place(kind models.OpKind, rec models.FileRecord, dir, name string) (dst string, moved bool, err error)
	Vacated(path string) bool
}

// RenameAll renames each record in its own directory. Records that need no
// rename are left alone; per-file errors are logged by the placer and the
// loop continues until ctx is cancelled.
func (r Renamer) RenameAll(ctx context.Context, p Placer, records []models.FileRecord, log *slog.Logger) (renamed int, err error) {
	log = logging.OrDiscard(log)
	log.Info("rename started", "files", len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return renamed, err
		}
		if p.Vacated(rec.Path) {
			log.Debug("already relocated, skipping", "path", rec.Path)
			continue
		}
		name, ok := r.NewName(rec)
		if !ok {
			continue
		}
		if _, moved, err := p.Place(models.OpRename, rec, rec.Dir(), name); err == nil && moved {
			renamed++
		}
	}
	log.Info("rename completed", "renamed", renamed)
	return renamed, nil
}
