package sysgate

import (
	"fmt"
	"regexp"
)

// Filterer reports whether a metric group should be exposed.
type Filterer func(string) bool

// NewFilterer compiles include and exclude patterns into a Filterer.
// A group passes if it matches any include and no exclude. When includes is
// empty, every group passes unless excluded.
func NewFilterer(includes, excludes []string) (Filterer, error) {
	reIncludes, err := compileAll("include", includes)
	if err != nil {
		return nil, err
	}

	reExcludes, err := compileAll("exclude", excludes)
	if err != nil {
		return nil, err
	}

	if len(reIncludes) == 0 && len(reExcludes) == 0 {
		return func(string) bool { return true }, nil
	}

	return func(group string) bool {
		if matchAny(reExcludes, group) {
			return false
		}

		return len(reIncludes) == 0 || matchAny(reIncludes, group)
	}, nil
}

func compileAll(kind string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling %s: %v: %w", kind, pattern, err)
		}

		compiled = append(compiled, re)
	}

	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}

	return false
}
