// Package exclude matches discovered entries against user-supplied patterns.
package exclude

import (
	"path"
	"strings"
)

// Matcher holds glob, exact-name and directory patterns
type Matcher struct {
	patterns []string
}

// New builds a matcher, dropping blank patterns. It returns nil when nothing is left.
func New(patterns []string) *Matcher {
	var kept []string
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return nil
	}
	return &Matcher{patterns: kept}
}

// Patterns returns the active patterns
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string{}, m.patterns...)
}

// IsExcluded reports whether relPath matches any pattern. A pattern ending in
// "/" matches that directory and everything below it; glob patterns are tried
// against both the full path and its base name.
func (m *Matcher) IsExcluded(relPath string) bool {
	if m == nil {
		return false
	}
	relPath = strings.TrimPrefix(relPath, "./")
	base := path.Base(relPath)
	for _, p := range m.patterns {
		if strings.HasSuffix(p, "/") {
			dirPattern := strings.TrimSuffix(p, "/")
			if relPath == dirPattern || strings.HasPrefix(relPath, dirPattern+"/") || strings.Contains(relPath, "/"+dirPattern+"/") {
				return true
			}
			continue
		}
		if strings.ContainsAny(p, "*?[") {
			if ok, _ := path.Match(p, relPath); ok {
				return true
			}
			if ok, _ := path.Match(p, base); ok {
				return true
			}
			continue
		}
		if relPath == p || base == p {
			return true
		}
	}
	return false
}
