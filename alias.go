package sysgate

import (
	"fmt"
	"regexp"
)

// Alias maps method names matching From onto To.
// To may reference capture groups of From ($1, ${name}).
type Alias struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Rewriter rewrites an incoming method name.
type Rewriter func(string) string

// NewRewriter compiles the aliases into a Rewriter.
// The first matching alias wins; names matching no alias are returned as-is.
func NewRewriter(aliases []Alias) (Rewriter, error) {
	patterns := make([]*regexp.Regexp, 0, len(aliases))
	for _, alias := range aliases {
		re, err := regexp.Compile(alias.From)
		if err != nil {
			return nil, fmt.Errorf("compiling alias from %q: %w", alias.From, err)
		}

		patterns = append(patterns, re)
	}

	if len(patterns) == 0 {
		return func(name string) string { return name }, nil
	}

	return func(name string) string {
		for i, re := range patterns {
			if re.MatchString(name) {
				return re.ReplaceAllString(name, aliases[i].To)
			}
		}

		return name
	}, nil
}
