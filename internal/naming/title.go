package naming

import (
	"regexp"
	"strings"
)

// noisePatterns are stripped from a stem, in order, to leave its title.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[-_]\d{2}[-_]\d{2}`), // 2024-01-01, 2024_01_01
	regexp.MustCompile(`\d{8}`),                   // 20240101
	regexp.MustCompile(`\d{2}[-_]\d{2}[-_]\d{2}`), // 24-01-01
	regexp.MustCompile(`\(\d+\)`),                 // (1)
	regexp.MustCompile(`\[\d+\]`),                 // [1]
	regexp.MustCompile(`^\d+[-_]`),                // 01-intro
	regexp.MustCompile(`[-_]\d+$`),                // draft_3
}

var (
	separatorRun  = regexp.MustCompile(`[-_]{2,}`)
	whitespaceRun = regexp.MustCompile(`\s{2,}`)
)

const trimSet = "-_ "

// maxTitlePasses bounds the fixpoint loop in ExtractTitle.
const maxTitlePasses = 8

// ExtractTitle strips date-like substrings, counters and numeric prefixes
// and suffixes from stem, collapses separator runs and trims separators,
// spaces and trailing dots. Stripping repeats until nothing changes. If
// nothing is left, stem is returned unmodified.
func ExtractTitle(stem string) string {
	title := stem
	for i := 0; i < maxTitlePasses; i++ {
		next := stripNoise(title)
		if next == title {
			break
		}
		title = next
	}
	if title == "" {
		return stem
	}
	return title
}

func stripNoise(s string) string {
	for _, re := range noisePatterns {
		s = re.ReplaceAllString(s, "")
	}
	s = separatorRun.ReplaceAllString(s, "_")
	s = whitespaceRun.ReplaceAllString(s, " ")
	for {
		t := strings.TrimRight(strings.Trim(s, trimSet), " .")
		if t == s {
			return s
		}
		s = t
	}
}

// Sanitize replaces characters that are illegal in file names on common
// filesystems with "_" and drops trailing dots and spaces.
func Sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	return strings.TrimRight(name, " .")
}
