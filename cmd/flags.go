package main

import (
	"github.com/spf13/pflag"

	"gotidy/internal/config"
)

// flagBinding copies one flag's value from the parsed flag config into the
// effective config. Only flags the user actually set are applied, so file
// values survive unless overridden.
type flagBinding struct {
	name  string
	apply func(dst, src *config.Config)
}

// flagValues receives every flag. Defaults come from config.Default() so
// help output shows the real defaults.
var flagValues = config.Default()

var bindings []flagBinding

func bind(name string, apply func(dst, src *config.Config)) {
	bindings = append(bindings, flagBinding{name: name, apply: apply})
}

func registerFlags(fs *pflag.FlagSet) {
	v := &flagValues

	fs.StringVar(&v.Scan.Root, "root", "", "Directory to organize (or pass it as the first argument)")
	bind("root", func(d, s *config.Config) { d.Scan.Root = s.Scan.Root })
	fs.BoolVar(&v.Scan.Recursive, "recursive", v.Scan.Recursive, "Descend into subdirectories")
	bind("recursive", func(d, s *config.Config) { d.Scan.Recursive = s.Scan.Recursive })
	fs.StringSliceVar(&v.Scan.ExcludeDirs, "exclude-dir", v.Scan.ExcludeDirs, "Directory names never descended into (exact match)")
	bind("exclude-dir", func(d, s *config.Config) { d.Scan.ExcludeDirs = s.Scan.ExcludeDirs })
	fs.StringSliceVar(&v.Scan.ExcludeExts, "exclude-ext", v.Scan.ExcludeExts, "File extensions to ignore")
	bind("exclude-ext", func(d, s *config.Config) { d.Scan.ExcludeExts = s.Scan.ExcludeExts })
	fs.Var(&v.Scan.MinSize, "min-size", "Ignore files smaller than this (e.g. 10KB)")
	bind("min-size", func(d, s *config.Config) { d.Scan.MinSize = s.Scan.MinSize })
	fs.Var(&v.Scan.MaxSize, "max-size", "Ignore files larger than this (e.g. 2GiB)")
	bind("max-size", func(d, s *config.Config) { d.Scan.MaxSize = s.Scan.MaxSize })
	fs.BoolVar(&v.Scan.IncludeHidden, "include-hidden", v.Scan.IncludeHidden, "Descend into hidden directories")
	bind("include-hidden", func(d, s *config.Config) { d.Scan.IncludeHidden = s.Scan.IncludeHidden })

	fs.StringVar(&v.Archive.Root, "archive-root", "", "Archive directory (default <root>/archive)")
	bind("archive-root", func(d, s *config.Config) { d.Archive.Root = s.Archive.Root })
	fs.BoolVar(&v.Archive.ByDate, "by-date", v.Archive.ByDate, "Archive into a date directory")
	bind("by-date", func(d, s *config.Config) { d.Archive.ByDate = s.Archive.ByDate })
	fs.BoolVar(&v.Archive.ByType, "by-type", v.Archive.ByType, "Archive into a type category directory")
	bind("by-type", func(d, s *config.Config) { d.Archive.ByType = s.Archive.ByType })
	fs.BoolVar(&v.Archive.ByName, "by-name", v.Archive.ByName, "Archive into a first-letter directory")
	bind("by-name", func(d, s *config.Config) { d.Archive.ByName = s.Archive.ByName })
	fs.Var(config.GranularityValue{P: &v.Archive.Granularity}, "granularity", "Date directory layout: year, year-month or year/month")
	bind("granularity", func(d, s *config.Config) { d.Archive.Granularity = s.Archive.Granularity })
	fs.BoolVar(&v.Archive.Rename, "archive-rename", v.Archive.Rename, "Rename files while archiving")
	bind("archive-rename", func(d, s *config.Config) { d.Archive.Rename = s.Archive.Rename })

	fs.BoolVar(&v.Rename.ByDate, "name-date", v.Rename.ByDate, "Prefix new names with a date")
	bind("name-date", func(d, s *config.Config) { d.Rename.ByDate = s.Rename.ByDate })
	fs.BoolVar(&v.Rename.ByType, "name-type", v.Rename.ByType, "Prefix new names with a type tag")
	bind("name-type", func(d, s *config.Config) { d.Rename.ByType = s.Rename.ByType })
	fs.Var(config.DateFormatValue{P: &v.Rename.DateFormat}, "date-format", "Date prefix format: YYYY-MM-DD, YYYYMMDD or YY-MM-DD")
	bind("date-format", func(d, s *config.Config) { d.Rename.DateFormat = s.Rename.DateFormat })
	fs.Var(config.DateSourceValue{P: &v.Rename.DateSource}, "date-source", "Date prefix source: modified or created")
	bind("date-source", func(d, s *config.Config) { d.Rename.DateSource = s.Rename.DateSource })

	fs.StringVar(&v.Duplicates.Dir, "duplicates-dir", "", "Duplicate inspection directory (default <root>/duplicates)")
	bind("duplicates-dir", func(d, s *config.Config) { d.Duplicates.Dir = s.Duplicates.Dir })
	fs.Var(config.KeepPolicyValue{P: &v.Duplicates.Keep}, "keep", "Which copy keeps its name: newest, oldest or shortest-path")
	bind("keep", func(d, s *config.Config) { d.Duplicates.Keep = s.Duplicates.Keep })
	fs.IntVar(&v.Duplicates.HashWorkers, "hash-workers", v.Duplicates.HashWorkers, "Parallel hashing workers")
	bind("hash-workers", func(d, s *config.Config) { d.Duplicates.HashWorkers = s.Duplicates.HashWorkers })

	fs.StringVar(&v.Log.Level, "log-level", v.Log.Level, "Log level: debug, info, warn or error")
	bind("log-level", func(d, s *config.Config) { d.Log.Level = s.Log.Level })
	fs.Var(config.LogFormatValue{P: &v.Log.Format}, "log-format", "Log format: text or json")
	bind("log-format", func(d, s *config.Config) { d.Log.Format = s.Log.Format })
	fs.StringVar(&v.Log.File, "log-file", "", "Also append logs to this file")
	bind("log-file", func(d, s *config.Config) { d.Log.File = s.Log.File })

	fs.BoolVar(&v.DryRun, "dry-run", false, "Log what would happen without touching any file")
	bind("dry-run", func(d, s *config.Config) { d.DryRun = s.DryRun })
	fs.StringVar(&v.JournalFile, "journal", "", "Write a JSON report of every operation to this file")
	bind("journal", func(d, s *config.Config) { d.JournalFile = s.JournalFile })
	fs.StringVar(&v.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this file")
	bind("metrics-file", func(d, s *config.Config) { d.MetricsFile = s.MetricsFile })
}

// applyFlags overlays the flags that were set on cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	for _, b := range bindings {
		if fs.Changed(b.name) {
			b.apply(cfg, &flagValues)
		}
	}
}
