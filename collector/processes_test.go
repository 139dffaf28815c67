package collector

import (
	"reflect"
	"testing"
	"time"
)

func TestStatusName(t *testing.T) {
	type Test struct {
		Status   string
		Expected string
	}

	testCases := []Test{
		{"running", "running"},
		{"sleep", "sleeping"},
		{"stop", "stopped"},
		{"zombie", "zombie"},
		{"wait", "waiting"},
		{"daemon", "daemon"},
	}

	for _, tc := range testCases {
		if got := statusName(tc.Status); got != tc.Expected {
			t.Errorf("%s: got %q, want %q", tc.Status, got, tc.Expected)
		}
	}
}

func TestProcessCacheFlush(t *testing.T) {
	c := newProcessCache(time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fetches := 0
	fetch := func() processInfo {
		fetches++
		return processInfo{username: "root"}
	}

	c.expire(start)
	c.lookup(1, fetch)
	c.lookup(1, fetch)

	c.expire(start.Add(30 * time.Second))
	info := c.lookup(1, fetch)

	if fetches != 1 {
		t.Fatalf("expected a single fetch within the cache interval, got %d", fetches)
	}
	if info.username != "root" || info.cmdline == nil {
		t.Errorf("unexpected cached info %+v", info)
	}

	c.expire(start.Add(time.Minute))
	c.lookup(1, fetch)

	if fetches != 2 {
		t.Errorf("expected the cache to be flushed after the interval, got %d fetches", fetches)
	}
}

func TestIOCounters(t *testing.T) {
	cur := processSample{read: 300, write: 40}
	prev := processSample{read: 100, write: 10}

	if got := ioCounters(cur, prev, true); !reflect.DeepEqual(got, []uint64{300, 40, 100, 10, 1}) {
		t.Errorf("seen: got %v", got)
	}
	if got := ioCounters(cur, processSample{}, false); !reflect.DeepEqual(got, []uint64{300, 40, 300, 40, 0}) {
		t.Errorf("first sample: got %v", got)
	}
}
