// Package pattern matches metric names ("category.name") against filter patterns.
//
// Pattern syntax:
//
//   - Exact (no prefix): case-insensitive exact match
//     Example: "vpn.connect" matches "vpn.connect" and "VPN.Connect"
//
//   - Wildcard (*): case-insensitive, * matches any run of characters including dots
//     Example: "vpn.*" matches "vpn.connect" and "vpn.tunnel.up"
//
//   - Regexp (~): case-sensitive regular expression
//     Example: "~^settings\.[a-z_]+_changed$"
//
//   - Regexp (~*): case-insensitive regular expression
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternType defines the type of pattern matching
type PatternType int

const (
	PatternTypeWildcard PatternType = iota
	PatternTypeRegexp
	PatternTypeExact
)

// Pattern is a compiled pattern ready for matching
type Pattern struct {
	Original        string
	Type            PatternType
	CleanPattern    string // prefix removed, lower-cased for exact/wildcard
	CaseInsensitive bool   // for ~*
	compiledRegexp  *regexp.Regexp
}

// DetectPatternType returns the pattern type, the pattern without its prefix,
// and whether a regexp is case-insensitive
func DetectPatternType(pattern string) (PatternType, string, bool) {
	if strings.HasPrefix(pattern, "~*") {
		return PatternTypeRegexp, pattern[2:], true
	}
	if strings.HasPrefix(pattern, "~") {
		return PatternTypeRegexp, pattern[1:], false
	}
	if strings.Contains(pattern, "*") {
		return PatternTypeWildcard, pattern, false
	}
	return PatternTypeExact, pattern, false
}

// Compile pre-compiles a pattern. Call it once while loading configuration.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	patternType, cleanPattern, caseInsensitive := DetectPatternType(pattern)

	p := &Pattern{
		Original:        pattern,
		Type:            patternType,
		CleanPattern:    cleanPattern,
		CaseInsensitive: caseInsensitive,
	}

	switch patternType {
	case PatternTypeRegexp:
		expr := cleanPattern
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp pattern '%s': %w", pattern, err)
		}
		p.compiledRegexp = re
	default:
		p.CleanPattern = strings.ToLower(cleanPattern)
	}

	return p, nil
}

// Match tests if name matches the compiled pattern
func (p *Pattern) Match(name string) bool {
	if p == nil {
		return false
	}

	switch p.Type {
	case PatternTypeRegexp:
		return p.compiledRegexp != nil && p.compiledRegexp.MatchString(name)
	case PatternTypeWildcard:
		return MatchWildcard(strings.ToLower(name), p.CleanPattern)
	case PatternTypeExact:
		return strings.ToLower(name) == p.CleanPattern
	default:
		return false
	}
}

// Set is an ordered list of compiled patterns
type Set []*Pattern

// CompileAll compiles every pattern, failing on the first invalid one
func CompileAll(patterns []string) (Set, error) {
	set := make(Set, 0, len(patterns))
	for i, raw := range patterns {
		p, err := Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		set = append(set, p)
	}
	return set, nil
}

// MatchAny reports whether any pattern in the set matches name
func (s Set) MatchAny(name string) bool {
	for _, p := range s {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// MatchWildcard matches text against a pattern where * matches any run of
// characters, including none. Comparison is byte-exact; callers fold case.
//
// Examples:
//   - MatchWildcard("vpn.connect", "vpn.*") → true
//   - MatchWildcard("vpn.tunnel.up", "*.up") → true
//   - MatchWildcard("anything", "*") → true
func MatchWildcard(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	last := parts[len(parts)-1]
	if !strings.HasSuffix(text, last) {
		return false
	}
	text = text[:len(text)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(text, part)
		if idx == -1 {
			return false
		}
		text = text[idx+len(part):]
	}

	return true
}
