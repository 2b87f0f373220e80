// Package pathmatch matches slash-normalized paths against glob patterns
// with "!"-prefixed exception patterns.
package pathmatch

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher matches paths against compiled glob patterns. Exception patterns
// beat block patterns: a path matching any except never matches.
type Matcher struct {
	patterns    []glob.Glob
	excepts     []glob.Glob
	rawPatterns []string // original strings for reverse-glob matching
}

// New compiles block and exception patterns. Returns an error on the first
// pattern that fails to compile.
func New(patterns, excepts []string) (*Matcher, error) {
	m := &Matcher{
		patterns:    make([]glob.Glob, 0, len(patterns)),
		excepts:     make([]glob.Glob, 0, len(excepts)),
		rawPatterns: make([]string, 0, len(patterns)),
	}
	for _, p := range patterns {
		for _, variant := range patternVariants(p) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, err
			}
			m.patterns = append(m.patterns, g)
			m.rawPatterns = append(m.rawPatterns, p)
		}
	}
	for _, e := range excepts {
		for _, variant := range patternVariants(e) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, err
			}
			m.excepts = append(m.excepts, g)
		}
	}
	return m, nil
}

// patternVariants applies gitignore-style "**/" semantics: "**/.env" also
// matches ".env" at the root, which the glob alone would miss since it
// demands the literal slash.
func patternVariants(p string) []string {
	if rest, ok := strings.CutPrefix(p, "**/"); ok && rest != "" {
		return []string{p, rest}
	}
	return []string{p}
}

// NewMixed compiles a single list where "!"-prefixed entries are
// exceptions, the form policy files use ("**/.env", "!**/.env.example").
func NewMixed(mixed []string) (*Matcher, error) {
	var patterns, excepts []string
	for _, p := range mixed {
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			excepts = append(excepts, rest)
		} else {
			patterns = append(patterns, p)
		}
	}
	return New(patterns, excepts)
}

// Match reports whether p matches any pattern and no exception.
// Empty patterns match nothing.
func (m *Matcher) Match(p string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	// On Windows, convert \ to / so patterns using / match either separator.
	p = filepath.ToSlash(p)

	for _, pat := range m.patterns {
		if pat.Match(p) {
			for _, e := range m.excepts {
				if e.Match(p) {
					return false
				}
			}
			return true
		}
	}

	// A path that itself carries glob characters ("cat ~/.e*") can expand
	// to a protected file at run time without matching any pattern
	// literally. Check whether the path's glob could cover a protected
	// filename.
	if containsGlob(p) && m.matchGlobbedPath(p) {
		return true
	}
	return false
}

func containsGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// matchGlobbedPath checks if a path containing glob characters could match
// any file this matcher protects.
//
// Example: p="/home/user/.e*", pattern="**/.env"
//   - pathDir="/home/user", pathFile=".e*"
//   - ruleFile=".env"
//   - path.Match(".e*", ".env") → true → protected
func (m *Matcher) matchGlobbedPath(p string) bool {
	pathDir := path.Dir(p)
	pathFile := path.Base(p)
	if !containsGlob(pathFile) {
		return false
	}

	for i, rawPat := range m.rawPatterns {
		ruleFile := path.Base(rawPat)
		if ruleFile == "" || ruleFile == "." {
			continue
		}
		matched, err := path.Match(pathFile, ruleFile)
		if err != nil || !matched {
			continue
		}
		// Filename glob covers the protected name. Verify the directory is
		// compatible by testing a concrete path against the compiled pattern.
		testPath := pathDir + "/" + ruleFile
		if m.patterns[i].Match(testPath) {
			excluded := false
			for _, e := range m.excepts {
				if e.Match(testPath) {
					excluded = true
					break
				}
			}
			if !excluded {
				return true
			}
		}
	}
	return false
}

// MatchAny returns the first matching path, if any.
func (m *Matcher) MatchAny(paths []string) (matched bool, matchedPath string) {
	for _, p := range paths {
		if m.Match(p) {
			return true, p
		}
	}
	return false, ""
}
