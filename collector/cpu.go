package collector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

type cpuUsage struct {
	Total     float64 `json:"total"`
	User      float64 `json:"user"`
	System    float64 `json:"system"`
	Idle      float64 `json:"idle"`
	Nice      float64 `json:"nice"`
	IOWait    float64 `json:"iowait"`
	IRQ       float64 `json:"irq"`
	SoftIRQ   float64 `json:"softirq"`
	Steal     float64 `json:"steal"`
	Guest     float64 `json:"guest"`
	GuestNice float64 `json:"guest_nice"`
}

type cpuTotal struct {
	cpuUsage
	CPUCore         int     `json:"cpucore"`
	TimeSinceUpdate float64 `json:"time_since_update"`
}

type cpuCore struct {
	CPUNumber int `json:"cpu_number"`
	cpuUsage
}

type cpuState struct {
	prev cpu.TimesStat
	at   time.Time
}

func (s *cpuState) collect(ctx context.Context) (any, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cpu times: %w", err)
	}
	if len(times) == 0 {
		return nil, errors.New("cpu times: no samples")
	}

	t := now()
	usage := cpuTotal{
		cpuUsage:        usageBetween(s.prev, times[0]),
		CPUCore:         runtime.NumCPU(),
		TimeSinceUpdate: sinceUpdate(s.at, t),
	}

	s.prev, s.at = times[0], t
	return usage, nil
}

type percpuState struct {
	prev map[string]cpu.TimesStat
}

func (s *percpuState) collect(ctx context.Context) (any, error) {
	times, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("percpu times: %w", err)
	}

	next := make(map[string]cpu.TimesStat, len(times))
	list := make([]cpuCore, 0, len(times))
	for i, cur := range times {
		list = append(list, cpuCore{
			CPUNumber: i,
			cpuUsage:  usageBetween(s.prev[cur.CPU], cur),
		})
		next[cur.CPU] = cur
	}

	s.prev = next
	return list, nil
}

func busy(t cpu.TimesStat) float64 {
	// guest time is already accounted in user and nice
	return t.User + t.System + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
}

// usageBetween turns two cumulative samples into percentages of the elapsed
// cpu time. A zero prev yields the averages since boot.
func usageBetween(prev, cur cpu.TimesStat) cpuUsage {
	elapsed := (busy(cur) + cur.Idle) - (busy(prev) + prev.Idle)
	if elapsed <= 0 {
		return cpuUsage{}
	}

	pct := func(a, b float64) float64 {
		v := (b - a) / elapsed * 100
		switch {
		case v < 0:
			return 0
		case v > 100:
			return 100
		}
		return round(v)
	}

	u := cpuUsage{
		User:      pct(prev.User, cur.User),
		System:    pct(prev.System, cur.System),
		Idle:      pct(prev.Idle, cur.Idle),
		Nice:      pct(prev.Nice, cur.Nice),
		IOWait:    pct(prev.Iowait, cur.Iowait),
		IRQ:       pct(prev.Irq, cur.Irq),
		SoftIRQ:   pct(prev.Softirq, cur.Softirq),
		Steal:     pct(prev.Steal, cur.Steal),
		Guest:     pct(prev.Guest, cur.Guest),
		GuestNice: pct(prev.GuestNice, cur.GuestNice),
	}
	u.Total = round(100 - u.Idle)

	return u
}

func round(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
