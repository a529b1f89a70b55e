package models

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileRecord is a snapshot of one regular file taken at scan time.
// It is never mutated after the scanner creates it.
type FileRecord struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Ext        string    `json:"ext"` // lower-case, no leading dot
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// NewFileRecord derives Name and Ext from path.
func NewFileRecord(path string, size int64, created, modified, accessed time.Time) FileRecord {
	name := filepath.Base(path)
	return FileRecord{
		Path:       path,
		Name:       name,
		Ext:        NormalizeExt(filepath.Ext(name)),
		Size:       size,
		CreatedAt:  created,
		ModifiedAt: modified,
		AccessedAt: accessed,
	}
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Suffix is the original-case extension including the dot ("" if none).
func (r FileRecord) Suffix() string {
	return filepath.Ext(r.Name)
}

// Stem is the file name without its suffix.
func (r FileRecord) Stem() string {
	return strings.TrimSuffix(r.Name, r.Suffix())
}

// Dir is the directory holding the file.
func (r FileRecord) Dir() string {
	return filepath.Dir(r.Path)
}

// Eligible reports whether the record passes the extension and size filters.
func (r FileRecord) Eligible(f Filter) bool {
	if f.ExcludedExt[r.Ext] {
		return false
	}
	if f.MaxSize > 0 && r.Size > f.MaxSize {
		return false
	}
	if f.MinSize > 0 && r.Size < f.MinSize {
		return false
	}
	return true
}

// Matches reports whether info still describes the file the record was
// taken from. A mismatch means the file changed after the scan.
func (r FileRecord) Matches(info os.FileInfo) bool {
	if info == nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() == r.Size && info.ModTime().Equal(r.ModifiedAt)
}

// Filter holds the eligibility rules. Zero size bounds mean unbounded.
type Filter struct {
	ExcludedExt map[string]bool
	MinSize     int64
	MaxSize     int64
}

// NewFilter builds a Filter from a list of extensions in any case, with or
// without the leading dot.
func NewFilter(excluded []string, minSize, maxSize int64) Filter {
	set := make(map[string]bool, len(excluded))
	for _, ext := range excluded {
		if e := NormalizeExt(ext); e != "" {
			set[e] = true
		}
	}
	return Filter{ExcludedExt: set, MinSize: minSize, MaxSize: maxSize}
}

// DuplicateGroup is a set of two or more records with identical content.
type DuplicateGroup struct {
	Hash    string       `json:"hash"`
	Size    int64        `json:"size"`
	Members []FileRecord `json:"members"`
}

type OpKind string

const (
	OpDuplicate OpKind = "duplicate"
	OpArchive   OpKind = "archive"
	OpRename    OpKind = "rename"
	OpManifest  OpKind = "manifest"
)

type OpStatus string

const (
	StatusPlanned OpStatus = "planned" // dry-run
	StatusDone    OpStatus = "done"
	StatusSkipped OpStatus = "skipped"
	StatusFailed  OpStatus = "failed"
)

// Operation is one intended filesystem mutation and its outcome.
type Operation struct {
	Kind        OpKind    `json:"kind"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination"`
	Status      OpStatus  `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// RunStats aggregates counters for one invocation.
type RunStats struct {
	Scanned    int   `json:"scanned"`
	Candidates int   `json:"candidates"`
	Hashed     int   `json:"hashed"`
	Groups     int   `json:"groups"`
	Moved      int   `json:"moved"`
	Renamed    int   `json:"renamed"`
	Unchanged  int   `json:"unchanged"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// Add folds other into s.
func (s *RunStats) Add(other RunStats) {
	s.Scanned += other.Scanned
	s.Candidates += other.Candidates
	s.Hashed += other.Hashed
	s.Groups += other.Groups
	s.Moved += other.Moved
	s.Renamed += other.Renamed
	s.Unchanged += other.Unchanged
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Bytes += other.Bytes
}

// FileEvent is a settled change reported by the watcher.
type FileEvent struct {
	Path      string
	Operation string // CREATE, MODIFY, SCAN
	Timestamp time.Time
}
