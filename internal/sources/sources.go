// Package sources expands the access log arguments given on the command line
// into the ordered list of files to analyze.
package sources

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatch is returned when a glob pattern matches no files.
var ErrNoMatch = errors.New("pattern matched no files")

// SplitList splits a comma-separated argument into trimmed, non-empty entries.
// Commas inside a {a,b} alternation belong to the pattern and do not split.
func SplitList(arg string) []string {
	var out []string
	flush := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	depth, start := 0, 0
	for i := 0; i < len(arg); i++ {
		switch arg[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(arg[start:i])
				start = i + 1
			}
		}
	}
	flush(arg[start:])
	return out
}

// IsPattern reports whether p contains glob metacharacters.
func IsPattern(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Resolve expands patterns into file paths.
//
// A plain path is passed through untouched, so a missing file is reported by
// whoever opens it. A glob pattern ("**" included) contributes its matching
// regular files in lexical order, and must match at least one. Paths already
// produced by an earlier pattern are not repeated.
func Resolve(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, pattern := range patterns {
		if !IsPattern(pattern) {
			add(pattern)
			continue
		}

		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}

		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%q: %w", pattern, ErrNoMatch)
		}

		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}

	return files, nil
}

// Describe returns size information for each resolved file, for logging.
// Files that cannot be stat'ed are reported with size -1.
func Describe(files []string) map[string]int64 {
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			sizes[f] = -1
			continue
		}
		sizes[f] = info.Size()
	}
	return sizes
}
