// Package collector gathers host metrics into snapshots using gopsutil.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudbox/sysgate"
)

const defaultProcessCache = time.Minute

type Config struct {
	// ProcessCache is how long usernames and command lines are cached per pid.
	ProcessCache time.Duration `yaml:"process-cache"`

	Verbosity string `yaml:"verbosity"`
}

// source produces the value of one group.
type source func(ctx context.Context) (any, error)

// Collector produces a snapshot of every group it knows.
// Calls to Collect are serialized; delta based groups compare against the
// previous call.
type Collector struct {
	mu      sync.Mutex
	sources map[string]source
	log     zerolog.Logger

	cpu     cpuState
	percpu  percpuState
	network counterState
	diskio  counterState
	procs   *processCache
}

var now = time.Now

func New(c Config) *Collector {
	interval := c.ProcessCache
	if interval <= 0 {
		interval = defaultProcessCache
	}

	col := &Collector{
		log:   sysgate.GetLogger("collector", c.Verbosity),
		procs: newProcessCache(interval),
	}

	col.sources = map[string]source{
		"system":       system,
		"uptime":       uptime,
		"now":          currentTime,
		"core":         core,
		"cpu":          col.cpu.collect,
		"percpu":       col.percpu.collect,
		"load":         loadAvg,
		"mem":          memory,
		"memswap":      swap,
		"network":      col.network.collectNetwork,
		"diskio":       col.diskio.collectDisks,
		"fs":           filesystems,
		"sensors":      sensors,
		"processcount": processCount,
		"processlist":  col.procs.list,
	}

	return col
}

// Groups returns the sorted names of every group the collector produces.
func (c *Collector) Groups() []string {
	groups := make([]string, 0, len(c.sources))
	for name := range c.sources {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	return groups
}

// Collect gathers all groups concurrently. A group whose source fails is left
// out of the snapshot; Collect itself only fails once ctx is done.
func (c *Collector) Collect(ctx context.Context) (sysgate.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		mu   sync.Mutex
		snap = make(sysgate.Snapshot, len(c.sources))
	)

	g, gctx := errgroup.WithContext(ctx)
	for name, fn := range c.sources {
		g.Go(func() error {
			value, err := fn(gctx)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}

				c.log.Debug().
					Err(err).
					Str("group", name).
					Msg("Group Unavailable")
				return nil
			}

			mu.Lock()
			snap[name] = value
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}

	return snap, nil
}

// sinceUpdate returns the seconds elapsed between two samples, zero for the
// first sample.
func sinceUpdate(prev, cur time.Time) float64 {
	if prev.IsZero() {
		return 0
	}

	return cur.Sub(prev).Seconds()
}

// delta returns cur - prev for monotonic counters, zero when the counter
// went backwards.
func delta(prev, cur uint64) uint64 {
	if cur < prev {
		return 0
	}

	return cur - prev
}
