package sysgate

import (
	"testing"
)

func TestRewriter(t *testing.T) {
	type Test struct {
		Name     string
		Aliases  []Alias
		Input    string
		Expected string
	}

	testCases := []Test{
		{
			Name:     "Exact alias",
			Input:    "getMemSwap",
			Expected: "getMemswap",
			Aliases: []Alias{{
				From: "^getMemSwap$",
				To:   "getMemswap",
			}},
		},
		{
			Name:     "Capture group",
			Input:    "fetchCpu",
			Expected: "getCpu",
			Aliases: []Alias{{
				From: "^fetch(.*)$",
				To:   "get$1",
			}},
		},
		{
			Name:     "Returns input when no aliases are given",
			Input:    "getCpu",
			Expected: "getCpu",
		},
		{
			Name:     "Returns input when alias does not match",
			Input:    "getLoad",
			Expected: "getLoad",
			Aliases: []Alias{{
				From: "^getMemSwap$",
				To:   "getMemswap",
			}},
		},
		{
			Name:     "Uses second alias if first one does not match",
			Input:    "getNet",
			Expected: "getNetwork",
			Aliases: []Alias{
				{From: "^getMemSwap$", To: "getMemswap"},
				{From: "^getNet$", To: "getNetwork"},
			},
		},
		{
			Name:     "First matching alias wins",
			Input:    "getDisk",
			Expected: "getDiskio",
			Aliases: []Alias{
				{From: "^getDisk$", To: "getDiskio"},
				{From: "^getDisk$", To: "getFs"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			rewriter, err := NewRewriter(tc.Aliases)
			if err != nil {
				t.Fatal(err)
			}

			result := rewriter(tc.Input)
			if result != tc.Expected {
				t.Errorf("%s does not equal %s", result, tc.Expected)
			}
		})
	}
}

func TestRewriterInvalidPattern(t *testing.T) {
	if _, err := NewRewriter([]Alias{{From: "(", To: ""}}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestFilterer(t *testing.T) {
	type Test struct {
		Name     string
		Includes []string
		Excludes []string
		Group    string
		Expected bool
	}

	testCases := []Test{
		{Name: "No patterns", Group: "cpu", Expected: true},
		{Name: "Excluded", Excludes: []string{"^sensors$"}, Group: "sensors", Expected: false},
		{Name: "Not excluded", Excludes: []string{"^sensors$"}, Group: "cpu", Expected: true},
		{Name: "Included", Includes: []string{"^(cpu|mem)$"}, Group: "mem", Expected: true},
		{Name: "Not included", Includes: []string{"^(cpu|mem)$"}, Group: "load", Expected: false},
		{
			Name:     "Exclude beats include",
			Includes: []string{"^process"},
			Excludes: []string{"^processlist$"},
			Group:    "processlist",
			Expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			filter, err := NewFilterer(tc.Includes, tc.Excludes)
			if err != nil {
				t.Fatal(err)
			}

			if got := filter(tc.Group); got != tc.Expected {
				t.Errorf("filter(%q) = %v, want %v", tc.Group, got, tc.Expected)
			}
		})
	}
}

func TestFiltererInvalidPattern(t *testing.T) {
	if _, err := NewFilterer(nil, []string{"["}); err == nil {
		t.Fatal("expected error for invalid exclude")
	}
}

func TestJoinHostPort(t *testing.T) {
	testCases := map[string]struct {
		host string
		port int
		want string
	}{
		"ipv4":  {"127.0.0.1", 61209, "127.0.0.1:61209"},
		"ipv6":  {"::1", 61209, "[::1]:61209"},
		"empty": {"", 8080, ":8080"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := JoinHostPort(tc.host, tc.port); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
