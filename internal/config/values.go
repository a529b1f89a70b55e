package config

// This file holds the value types shared by the YAML loader and the CLI:
// ByteSize for human-readable size bounds and pflag.Value adapters for the
// enum fields, so invalid values are rejected at flag-parse time.

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that parses human forms like "10MB" or "1.5 GiB".
type ByteSize int64

// ParseByteSize parses s; the empty string is zero.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) Int64() int64 { return int64(b) }

func (b ByteSize) String() string {
	if b <= 0 {
		return "0"
	}
	return humanize.IBytes(uint64(b))
}

// Set implements pflag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b *ByteSize) Type() string { return "size" }

// UnmarshalYAML accepts both plain integers and human strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	return b.Set(node.Value)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (use debug, info, warn or error)", s)
}

// pflag.Value adapters for the enum types.

type GranularityValue struct{ P *Granularity }

func (v GranularityValue) String() string { return string(*v.P) }
func (v GranularityValue) Type() string   { return "granularity" }
func (v GranularityValue) Set(s string) error {
	g, ok := ParseGranularity(strings.ToLower(s))
	if !ok {
		return fmt.Errorf("invalid granularity %q (use year, year-month or year/month)", s)
	}
	*v.P = g
	return nil
}

type DateFormatValue struct{ P *DateFormat }

func (v DateFormatValue) String() string { return string(*v.P) }
func (v DateFormatValue) Type() string   { return "format" }
func (v DateFormatValue) Set(s string) error {
	switch f := DateFormat(strings.ToUpper(s)); f {
	case DateISO, DateCompact, DateShort:
		*v.P = f
		return nil
	}
	return fmt.Errorf("invalid date format %q (use YYYY-MM-DD, YYYYMMDD or YY-MM-DD)", s)
}

type DateSourceValue struct{ P *DateSource }

func (v DateSourceValue) String() string { return string(*v.P) }
func (v DateSourceValue) Type() string   { return "source" }
func (v DateSourceValue) Set(s string) error {
	switch d := DateSource(strings.ToLower(s)); d {
	case DateFromModified, DateFromCreated:
		*v.P = d
		return nil
	}
	return fmt.Errorf("invalid date source %q (use 'modified' or 'created')", s)
}

type KeepPolicyValue struct{ P *KeepPolicy }

func (v KeepPolicyValue) String() string { return string(*v.P) }
func (v KeepPolicyValue) Type() string   { return "policy" }
func (v KeepPolicyValue) Set(s string) error {
	switch k := KeepPolicy(strings.ToLower(s)); k {
	case KeepNewest, KeepOldest, KeepShortestPath:
		*v.P = k
		return nil
	}
	return fmt.Errorf("invalid keep policy %q (use newest, oldest or shortest-path)", s)
}

type LogFormatValue struct{ P *LogFormat }

func (v LogFormatValue) String() string { return string(*v.P) }
func (v LogFormatValue) Type() string   { return "format" }
func (v LogFormatValue) Set(s string) error {
	switch f := LogFormat(strings.ToLower(s)); f {
	case LogText, LogJSON:
		*v.P = f
		return nil
	}
	return fmt.Errorf("invalid log format %q (use 'text' or 'json')", s)
}
