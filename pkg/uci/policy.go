package uci

import (
	"path/filepath"
	"strings"
)

// Policy is the remote-preservation policy attached to a package: a set of
// whitelist glob patterns (new form) plus the deprecated allowed_sections /
// allowed_values fallback, consulted only when whitelist is empty.
type Policy struct {
	Whitelist       []string
	AllowedSections []string
	AllowedValues   []string
}

// ShouldKeepRemotePath reports whether a remote-only path (relative to its
// package, dotted) should be preserved rather than removed. relPath is the
// path with the package segment dropped; value is the option's scalar or
// per-element list value, used only by the legacy allowed_values fallback.
func (p *Policy) ShouldKeepRemotePath(relPath, value string) bool {
	if p == nil {
		return false
	}
	if len(p.Whitelist) > 0 {
		return p.IsPathWhitelisted(relPath)
	}
	return p.isSectionAllowed(relPath) || p.isValueAllowed(value)
}

// IsPathWhitelisted reports whether relPath matches any whitelist pattern,
// including the special trailing-`.*` section-inclusion rule.
func (p *Policy) IsPathWhitelisted(relPath string) bool {
	for _, pattern := range p.Whitelist {
		if matchPathPattern(relPath, pattern) {
			return true
		}
		if strings.HasSuffix(pattern, ".*") {
			prefix := strings.TrimSuffix(pattern, ".*")
			if matchPathPattern(relPath, prefix) {
				return true
			}
		}
	}
	return false
}

// isSectionAllowed implements the deprecated allowed_sections fallback: the
// pattern matches the section name (the second dotted segment of the full
// path — here, the first segment of relPath) with filename-glob semantics.
func (p *Policy) isSectionAllowed(relPath string) bool {
	segs := strings.Split(relPath, ".")
	if len(segs) == 0 {
		return false
	}
	section := segs[0]
	for _, pattern := range p.AllowedSections {
		if ok, _ := filepath.Match(pattern, section); ok {
			return true
		}
	}
	return false
}

// isValueAllowed implements the deprecated allowed_values fallback: the
// pattern matches the scalar or list-element value with filename-glob
// semantics.
func (p *Policy) isValueAllowed(value string) bool {
	for _, pattern := range p.AllowedValues {
		if ok, _ := filepath.Match(pattern, value); ok {
			return true
		}
	}
	return false
}

// matchPathPattern implements the dotted path-glob matcher: literal
// segments match equal segments; `*` matches exactly one segment; `**`
// matches zero or more consecutive segments via explicit recursion (at a
// `**` segment, try matching the remainder of the pattern against the
// remainder of the path at each suffix position); glob characters within a
// segment use filepath.Match semantics against that single segment.
func matchPathPattern(path, pattern string) bool {
	return matchSegments(strings.Split(path, "."), strings.Split(pattern, "."))
}

func matchSegments(path, pattern []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	head := pattern[0]
	if head == "**" {
		for i := 0; i <= len(path); i++ {
			if matchSegments(path[i:], pattern[1:]) {
				return true
			}
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if head == "*" {
		return matchSegments(path[1:], pattern[1:])
	}
	if ok, _ := filepath.Match(head, path[0]); !ok {
		return false
	}
	return matchSegments(path[1:], pattern[1:])
}
