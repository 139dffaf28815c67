package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/cloudbox/sysgate/throttle"
)

var statusNames = map[string]string{
	process.Running: "running",
	process.Sleep:   "sleeping",
	process.Stop:    "stopped",
	process.Idle:    "idle",
	process.Zombie:  "zombie",
	process.Wait:    "waiting",
	process.Lock:    "locked",
}

func statusName(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}

	return status
}

func processCount(ctx context.Context) (any, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}

	counts := map[string]int{
		"total":    0,
		"running":  0,
		"sleeping": 0,
		"thread":   0,
	}

	for _, p := range procs {
		status, err := p.StatusWithContext(ctx)
		if err != nil || len(status) == 0 {
			// exited while counting
			continue
		}

		counts["total"]++
		counts[statusName(status[0])]++

		if threads, err := p.NumThreadsWithContext(ctx); err == nil {
			counts["thread"] += int(threads)
		}
	}

	return counts, nil
}

type processEntry struct {
	PID             int32     `json:"pid"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	Cmdline         []string  `json:"cmdline"`
	Status          string    `json:"status"`
	Nice            int32     `json:"nice"`
	MemoryInfo      []uint64  `json:"memory_info"`
	MemoryPercent   float32   `json:"memory_percent"`
	CPUTimes        []float64 `json:"cpu_times"`
	CPUPercent      float64   `json:"cpu_percent"`
	IOCounters      []uint64  `json:"io_counters"`
	TimeSinceUpdate float64   `json:"time_since_update"`
}

// processInfo holds the per-pid attributes that are slow to look up.
type processInfo struct {
	username string
	cmdline  []string
}

type processSample struct {
	cpu   float64
	read  uint64
	write uint64
	at    time.Time
}

// processCache keeps usernames and command lines per pid until the next
// flush, and the previous cpu and io sample of every live pid.
type processCache struct {
	interval time.Duration
	flush    throttle.Throttle
	info     map[int32]processInfo
	prev     map[int32]processSample
}

func newProcessCache(interval time.Duration) *processCache {
	return &processCache{
		interval: interval,
		info:     make(map[int32]processInfo),
		prev:     make(map[int32]processSample),
	}
}

func (c *processCache) expire(t time.Time) {
	if !c.flush.Due(t) {
		return
	}

	clear(c.info)
	c.flush.Reset(t, c.interval)
}

func (c *processCache) lookup(pid int32, fetch func() processInfo) processInfo {
	if info, ok := c.info[pid]; ok {
		return info
	}

	info := fetch()
	if info.cmdline == nil {
		info.cmdline = []string{}
	}

	c.info[pid] = info
	return info
}

func (c *processCache) list(ctx context.Context) (any, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}

	t := now()
	c.expire(t)

	next := make(map[int32]processSample, len(procs))
	list := make([]processEntry, 0, len(procs))

	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}

		info := c.lookup(p.Pid, func() processInfo {
			username, _ := p.UsernameWithContext(ctx)
			cmdline, _ := p.CmdlineSliceWithContext(ctx)
			return processInfo{username: username, cmdline: cmdline}
		})

		e := processEntry{
			PID:      p.Pid,
			Name:     name,
			Username: info.username,
			Cmdline:  info.cmdline,
		}

		if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
			e.Status = statusName(status[0])
		}
		e.Nice, _ = p.NiceWithContext(ctx)
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			e.MemoryInfo = []uint64{mi.RSS, mi.VMS}
		}
		e.MemoryPercent, _ = p.MemoryPercentWithContext(ctx)

		sample := processSample{at: t}
		prev, seen := c.prev[p.Pid]
		if seen {
			e.TimeSinceUpdate = t.Sub(prev.at).Seconds()
		}

		if times, err := p.TimesWithContext(ctx); err == nil {
			e.CPUTimes = []float64{times.User, times.System}
			sample.cpu = times.User + times.System
			if seen && e.TimeSinceUpdate > 0 && sample.cpu >= prev.cpu {
				e.CPUPercent = round((sample.cpu - prev.cpu) / e.TimeSinceUpdate * 100)
			}
		}

		if io, err := p.IOCountersWithContext(ctx); err == nil {
			sample.read, sample.write = io.ReadBytes, io.WriteBytes
			e.IOCounters = ioCounters(sample, prev, seen)
		}

		next[p.Pid] = sample
		list = append(list, e)
	}

	c.prev = next
	return list, nil
}

// ioCounters renders [read, write, read_old, write_old, tag]; tag is 0 when
// no previous sample exists and the old values repeat the current ones.
func ioCounters(cur, prev processSample, seen bool) []uint64 {
	if !seen {
		return []uint64{cur.read, cur.write, cur.read, cur.write, 0}
	}

	return []uint64{cur.read, cur.write, prev.read, prev.write, 1}
}
