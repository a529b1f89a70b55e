// Package config holds runtime configuration: defaults, YAML loading, enum
// values, and validation. A Config is built once at startup and passed by
// value or pointer into each component; nothing reads it globally.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Granularity selects how the archive date segment is laid out.
type Granularity string

const (
	GranularityYear      Granularity = "year"       // 2024
	GranularityYearMonth Granularity = "year-month" // 2024-03
	GranularityMonthDir  Granularity = "year/month" // 2024/03 (default)
)

// DateFormat selects the template of the rename date prefix.
type DateFormat string

const (
	DateISO     DateFormat = "YYYY-MM-DD" // default
	DateCompact DateFormat = "YYYYMMDD"
	DateShort   DateFormat = "YY-MM-DD"
)

// DateSource selects which timestamp feeds the rename date prefix.
type DateSource string

const (
	DateFromModified DateSource = "modified" // default
	DateFromCreated  DateSource = "created"
)

// KeepPolicy decides which member of a duplicate group keeps its name.
type KeepPolicy string

const (
	KeepNewest       KeepPolicy = "newest" // most recently modified (default)
	KeepOldest       KeepPolicy = "oldest"
	KeepShortestPath KeepPolicy = "shortest-path"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

type ScanConfig struct {
	Root          string   `yaml:"root"`
	Recursive     bool     `yaml:"recursive"`
	ExcludeDirs   []string `yaml:"exclude_dirs"`
	ExcludeExts   []string `yaml:"exclude_extensions"`
	MinSize       ByteSize `yaml:"min_size"`
	MaxSize       ByteSize `yaml:"max_size"`
	IncludeHidden bool     `yaml:"include_hidden"`
}

type ArchiveConfig struct {
	Root        string      `yaml:"root"`
	ByDate      bool        `yaml:"by_date"`
	ByType      bool        `yaml:"by_type"`
	ByName      bool        `yaml:"by_name"`
	Granularity Granularity `yaml:"granularity"`
	Rename      bool        `yaml:"rename"`
}

type RenameConfig struct {
	ByDate     bool       `yaml:"by_date"`
	ByType     bool       `yaml:"by_type"`
	DateFormat DateFormat `yaml:"date_format"`
	DateSource DateSource `yaml:"date_source"`
}

type DuplicatesConfig struct {
	Dir         string     `yaml:"dir"`
	Keep        KeepPolicy `yaml:"keep"`
	HashWorkers int        `yaml:"hash_workers"`
}

type LogConfig struct {
	Level  string    `yaml:"level"`
	Format LogFormat `yaml:"format"`
	File   string    `yaml:"file"`
}

// Config holds all runtime settings.
type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Rename     RenameConfig     `yaml:"rename"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	Log        LogConfig        `yaml:"log"`

	DryRun      bool   `yaml:"dry_run"`
	JournalFile string `yaml:"journal_file"`
	MetricsFile string `yaml:"metrics_file"`
}

// Default archive and duplicates directory names, created under the scan
// root when not configured.
const (
	DefaultArchiveDirName    = "archive"
	DefaultDuplicatesDirName = "duplicates"
)

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Recursive: true,
			ExcludeDirs: []string{
				"AppData",
				"Program Files",
				"Program Files (x86)",
				"Windows",
				"System Volume Information",
				"$Recycle.Bin",
				"node_modules",
				".git",
				"__pycache__",
				".venv",
				"venv",
			},
			ExcludeExts: []string{"lnk", "tmp", "temp"},
		},
		Archive: ArchiveConfig{
			ByDate:      true,
			ByType:      true,
			Granularity: GranularityMonthDir,
			Rename:      true,
		},
		Rename: RenameConfig{
			ByDate:     true,
			DateFormat: DateISO,
			DateSource: DateFromModified,
		},
		Duplicates: DuplicatesConfig{
			Keep:        KeepNewest,
			HashWorkers: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogText,
		},
	}
}

// ParseGranularity maps s to a Granularity. Unknown values fall back to
// year/month and ok is false so callers can warn.
func ParseGranularity(s string) (g Granularity, ok bool) {
	switch Granularity(s) {
	case GranularityYear, GranularityYearMonth, GranularityMonthDir:
		return Granularity(s), true
	case "":
		return GranularityMonthDir, true
	}
	return GranularityMonthDir, false
}

// Validate checks enum fields and bounds. It fixes up an unknown archive
// granularity (falling back to year/month) and reports that through the
// returned warnings instead of failing.
func (c *Config) Validate() (warnings []string, err error) {
	if c.Scan.Root == "" {
		return nil, errors.New("scan root is required")
	}
	if c.Scan.MinSize < 0 || c.Scan.MaxSize < 0 {
		return nil, errors.New("size bounds must not be negative")
	}
	if c.Scan.MinSize > 0 && c.Scan.MaxSize > 0 && c.Scan.MinSize > c.Scan.MaxSize {
		return nil, fmt.Errorf("min size %s exceeds max size %s", c.Scan.MinSize, c.Scan.MaxSize)
	}

	g, ok := ParseGranularity(string(c.Archive.Granularity))
	if !ok {
		warnings = append(warnings, fmt.Sprintf("unknown archive granularity %q, using %q", c.Archive.Granularity, g))
	}
	c.Archive.Granularity = g

	switch c.Rename.DateFormat {
	case DateISO, DateCompact, DateShort:
	case "":
		c.Rename.DateFormat = DateISO
	default:
		return nil, fmt.Errorf("invalid date format %q (use YYYY-MM-DD, YYYYMMDD or YY-MM-DD)", c.Rename.DateFormat)
	}

	switch c.Rename.DateSource {
	case DateFromModified, DateFromCreated:
	case "":
		c.Rename.DateSource = DateFromModified
	default:
		return nil, fmt.Errorf("invalid date source %q (use 'modified' or 'created')", c.Rename.DateSource)
	}

	switch c.Duplicates.Keep {
	case KeepNewest, KeepOldest, KeepShortestPath:
	case "":
		c.Duplicates.Keep = KeepNewest
	default:
		return nil, fmt.Errorf("invalid keep policy %q (use newest, oldest or shortest-path)", c.Duplicates.Keep)
	}
	if c.Duplicates.HashWorkers < 1 {
		return nil, fmt.Errorf("hash workers must be at least 1 (got %d)", c.Duplicates.HashWorkers)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return nil, err
	}
	switch c.Log.Format {
	case LogText, LogJSON:
	case "":
		c.Log.Format = LogText
	default:
		return nil, fmt.Errorf("invalid log format %q (use 'text' or 'json')", c.Log.Format)
	}
	return warnings, nil
}

// Resolve makes all paths absolute, checks that the scan root is an
// existing directory, and fills in the archive and duplicates directories.
func (c *Config) Resolve() error {
	root, err := filepath.Abs(c.Scan.Root)
	if err != nil {
		return fmt.Errorf("invalid scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("scan root does not exist: %s", root)
	}
	if !info.IsDir() {
		return fmt.Errorf("scan root is not a directory: %s", root)
	}
	c.Scan.Root = root

	if c.Archive.Root == "" {
		c.Archive.Root = filepath.Join(root, DefaultArchiveDirName)
	}
	if c.Archive.Root, err = filepath.Abs(c.Archive.Root); err != nil {
		return fmt.Errorf("invalid archive root: %w", err)
	}

	if c.Duplicates.Dir == "" {
		c.Duplicates.Dir = filepath.Join(root, DefaultDuplicatesDirName)
	}
	if c.Duplicates.Dir, err = filepath.Abs(c.Duplicates.Dir); err != nil {
		return fmt.Errorf("invalid duplicates dir: %w", err)
	}
	return nil
}
