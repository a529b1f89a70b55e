package naming

import (
	"fmt"
	"path/filepath"
)

// PathChecker reports whether a path is already taken. Implementations
// must look at the filesystem on every call; results are never cached.
type PathChecker interface {
	Exists(path string) bool
}

// CheckerFunc adapts a function to PathChecker.
type CheckerFunc func(path string) bool

func (f CheckerFunc) Exists(path string) bool { return f(path) }

// ExceptPath treats self as free, so a file being placed never collides
// with its own current location.
func ExceptPath(c PathChecker, self string) PathChecker {
	self = filepath.Clean(self)
	return CheckerFunc(func(path string) bool {
		if filepath.Clean(path) == self {
			return false
		}
		return c.Exists(path)
	})
}

// UniquePath returns dir/stem+suffix, or the first free
// dir/stem(n)+suffix for n = 1, 2, ... when it is taken.
func UniquePath(dir, stem, suffix string, c PathChecker) string {
	stem = Sanitize(stem)
	candidate := filepath.Join(dir, stem+suffix)
	for n := 1; c.Exists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s(%d)%s", stem, n, suffix))
	}
	return candidate
}

// SplitName splits a file name into stem and suffix.
func SplitName(name string) (stem, suffix string) {
	suffix = filepath.Ext(name)
	return name[:len(name)-len(suffix)], suffix
}
