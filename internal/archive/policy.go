package archive

import (
	"fmt"
	"path/filepath"
	"time"
	"unicode"
	"unicode/utf8"

	"gotidy/internal/config"
	"gotidy/pkg/models"
)

const (
	Uncategorized = "uncategorized"
	OtherCategory = "other"
	DigitBucket   = "0-9"
)

// Category is one entry of the type table.
type Category struct {
	Name       string
	Extensions []string
}

// Categories is searched in order; the first category listing an extension
// wins.
var Categories = []Category{
	{"documents", []string{"pdf", "doc", "docx", "txt", "rtf", "odt"}},
	{"spreadsheets", []string{"xls", "xlsx", "csv", "ods"}},
	{"presentations", []string{"ppt", "pptx", "odp"}},
	{"images", []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg", "ico"}},
	{"videos", []string{"mp4", "avi", "mov", "wmv", "flv", "mkv", "webm"}},
	{"audio", []string{"mp3", "wav", "flac", "aac", "ogg", "m4a"}},
	{"archives", []string{"zip", "rar", "7z", "tar", "gz", "bz2"}},
	{"executables", []string{"exe", "msi", "dmg", "deb", "rpm"}},
	{"code", []string{"py", "js", "java", "cpp", "c", "h", "html", "css", "xml", "json"}},
}

// CategoryOf returns the category name for a normalized extension.
func CategoryOf(ext string) string {
	for _, c := range Categories {
		for _, e := range c.Extensions {
			if e == ext {
				return c.Name
			}
		}
	}
	return OtherCategory
}

// NameSegment buckets a file name by its first character.
func NameSegment(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	switch {
	case r == utf8.RuneError:
		return OtherCategory
	case unicode.IsLetter(r):
		return string(unicode.ToUpper(r))
	case unicode.IsDigit(r):
		return DigitBucket
	}
	return OtherCategory
}

// DateSegment lays out t according to g. Unknown granularities use
// year/month.
func DateSegment(t time.Time, g config.Granularity) string {
	switch g {
	case config.GranularityYear:
		return fmt.Sprintf("%04d", t.Year())
	case config.GranularityYearMonth:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
	return filepath.Join(fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

// Policy composes the archive destination. Segments always appear in the
// order date, type, name, whatever order the flags were set in.
type Policy struct {
	ByDate      bool
	ByType      bool
	ByName      bool
	Granularity config.Granularity
}

func NewPolicy(cfg config.ArchiveConfig) Policy {
	return Policy{
		ByDate:      cfg.ByDate,
		ByType:      cfg.ByType,
		ByName:      cfg.ByName,
		Granularity: cfg.Granularity,
	}
}

// Destination returns the relative directory for rec when it is stored
// under name. The name segment follows name, not the current file name, so
// a renamed file lands where its new name sorts.
func (p Policy) Destination(rec models.FileRecord, name string) string {
	var parts []string
	if p.ByDate {
		parts = append(parts, DateSegment(rec.ModifiedAt, p.Granularity))
	}
	if p.ByType {
		parts = append(parts, CategoryOf(rec.Ext))
	}
	if p.ByName {
		parts = append(parts, NameSegment(name))
	}
	if len(parts) == 0 {
		return Uncategorized
	}
	return filepath.Join(parts...)
}
