package httpclient

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	type Test struct {
		Name     string
		Given    time.Duration
		Expected time.Duration
	}

	testCases := []Test{
		{"Default", 0, defaultTimeout},
		{"Negative", -time.Second, defaultTimeout},
		{"Custom", 2 * time.Second, 2 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			if got := New(tc.Given).Timeout; got != tc.Expected {
				t.Errorf("got %s, want %s", got, tc.Expected)
			}
		})
	}
}
