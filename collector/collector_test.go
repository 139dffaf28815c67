package collector

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

func TestCollect(t *testing.T) {
	c := New(Config{})

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// these groups never depend on the host exposing anything
	for _, group := range []string{"now", "core"} {
		if _, ok := snap[group]; !ok {
			t.Errorf("expected group %q in snapshot", group)
		}
	}

	known := make(map[string]bool)
	for _, group := range c.Groups() {
		known[group] = true
	}
	for group, value := range snap {
		if !known[group] {
			t.Errorf("snapshot holds undeclared group %q", group)
		}
		if _, err := json.Marshal(value); err != nil {
			t.Errorf("group %q does not marshal: %v", group, err)
		}
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Config{}).Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGroups(t *testing.T) {
	expected := []string{
		"core", "cpu", "diskio", "fs", "load", "mem", "memswap", "network",
		"now", "percpu", "processcount", "processlist", "sensors", "system", "uptime",
	}

	if got := New(Config{}).Groups(); !reflect.DeepEqual(got, expected) {
		t.Errorf("got %v, want %v", got, expected)
	}
}

func TestUsageBetween(t *testing.T) {
	type Test struct {
		Name     string
		Prev     cpu.TimesStat
		Cur      cpu.TimesStat
		Expected cpuUsage
	}

	testCases := []Test{
		{
			Name:     "Since boot",
			Cur:      cpu.TimesStat{User: 25, System: 25, Idle: 50},
			Expected: cpuUsage{Total: 50, User: 25, System: 25, Idle: 50},
		},
		{
			Name:     "Between samples",
			Prev:     cpu.TimesStat{User: 100, System: 50, Idle: 850},
			Cur:      cpu.TimesStat{User: 130, System: 60, Idle: 900, Iowait: 10},
			Expected: cpuUsage{Total: 50, User: 30, System: 10, Idle: 50, IOWait: 10},
		},
		{
			Name: "No time elapsed",
			Prev: cpu.TimesStat{User: 10, Idle: 10},
			Cur:  cpu.TimesStat{User: 10, Idle: 10},
		},
		{
			Name: "Counters went backwards",
			Prev: cpu.TimesStat{User: 100, Idle: 100},
			Cur:  cpu.TimesStat{User: 10, Idle: 10},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			if got := usageBetween(tc.Prev, tc.Cur); got != tc.Expected {
				t.Errorf("got %+v, want %+v", got, tc.Expected)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	type Test struct {
		Duration time.Duration
		Expected string
	}

	testCases := []Test{
		{0, "0:00:00"},
		{59 * time.Second, "0:00:59"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "3:04:05"},
		{24*time.Hour + time.Second, "1 day, 0:00:01"},
		{50*time.Hour + 30*time.Minute, "2 days, 2:30:00"},
	}

	for _, tc := range testCases {
		if got := formatUptime(tc.Duration); got != tc.Expected {
			t.Errorf("%s: got %q, want %q", tc.Duration, got, tc.Expected)
		}
	}
}

func TestCounterState(t *testing.T) {
	var s counterState

	next := make(map[string][]uint64)
	if got := s.advance(next, "eth0", []uint64{100, 50}); !reflect.DeepEqual(got, []uint64{0, 0}) {
		t.Errorf("first sample: got %v", got)
	}
	s.prev = next

	next = make(map[string][]uint64)
	if got := s.advance(next, "eth0", []uint64{160, 40}); !reflect.DeepEqual(got, []uint64{60, 0}) {
		t.Errorf("second sample: got %v", got)
	}
	if got := s.advance(next, "eth1", []uint64{1, 1}); !reflect.DeepEqual(got, []uint64{0, 0}) {
		t.Errorf("new device: got %v", got)
	}
}
