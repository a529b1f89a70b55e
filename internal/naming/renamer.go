package naming

import (
	"strings"
	"time"

	"gotidy/internal/config"
	"gotidy/pkg/models"
)

// Separator joins the parts of a generated name.
const Separator = "_"

var dateLayouts = map[config.DateFormat]string{
	config.DateISO:     "2006-01-02",
	config.DateCompact: "20060102",
	config.DateShort:   "06-01-02",
}

// typeTags maps extensions to the short label used as a name part.
var typeTags = map[string]string{
	"pdf":  "PDF",
	"doc":  "DOC",
	"docx": "DOC",
	"xls":  "XLS",
	"xlsx": "XLS",
	"ppt":  "PPT",
	"pptx": "PPT",
	"jpg":  "IMG",
	"jpeg": "IMG",
	"png":  "IMG",
	"gif":  "IMG",
	"mp4":  "VID",
	"avi":  "VID",
	"mov":  "VID",
	"mp3":  "AUD",
	"wav":  "AUD",
	"zip":  "ZIP",
	"rar":  "ZIP",
	"txt":  "TXT",
}

// TypeTag returns the label for ext, or ext upper-cased when unmapped.
func TypeTag(ext string) string {
	if tag, ok := typeTags[ext]; ok {
		return tag
	}
	return strings.ToUpper(ext)
}

// FormatDate renders t with the template for f; unknown formats use
// YYYY-MM-DD.
func FormatDate(t time.Time, f config.DateFormat) string {
	layout, ok := dateLayouts[f]
	if !ok {
		layout = dateLayouts[config.DateISO]
	}
	return t.Format(layout)
}

// Renamer derives cleaned, informative file names.
type Renamer struct {
	ByDate     bool
	ByType     bool
	DateFormat config.DateFormat
	DateSource config.DateSource
}

func NewRenamer(cfg config.RenameConfig) Renamer {
	return Renamer{
		ByDate:     cfg.ByDate,
		ByType:     cfg.ByType,
		DateFormat: cfg.DateFormat,
		DateSource: cfg.DateSource,
	}
}

// NewName returns the new file name for rec, or ok=false when the
// generated stem equals the current one. Applying it to its own output is
// always a no-op.
func (r Renamer) NewName(rec models.FileRecord) (name string, ok bool) {
	stem := rec.Stem()
	rest := Sanitize(stem)

	var parts []string
	if r.ByDate {
		date := FormatDate(r.dateOf(rec), r.DateFormat)
		parts = append(parts, date)
		rest = trimPart(rest, date)
	}

	tag := ""
	if r.ByType {
		tag = TypeTag(rec.Ext)
		if tag != "" {
			parts = append(parts, tag)
			rest = trimPart(rest, tag)
		}
	}

	if title := ExtractTitle(rest); title != "" {
		parts = append(parts, title)
	}

	newStem := Sanitize(strings.Join(parts, Separator))
	if newStem == "" || newStem == stem {
		return "", false
	}
	return newStem + rec.Suffix(), true
}

// trimPart drops a leading part written by a previous rename, including a
// stem that consists of nothing but that part.
func trimPart(rest, part string) string {
	if rest == part {
		return ""
	}
	return strings.TrimPrefix(rest, part+Separator)
}

func (r Renamer) dateOf(rec models.FileRecord) time.Time {
	if r.DateSource == config.DateFromCreated && !rec.CreatedAt.IsZero() {
		return rec.CreatedAt
	}
	return rec.ModifiedAt
}
