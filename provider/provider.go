// Package provider serves metric groups from a collector, refreshing the
// snapshot at most once per cached interval.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudbox/sysgate"
	"github.com/cloudbox/sysgate/stats"
	"github.com/cloudbox/sysgate/throttle"
)

type Config struct {
	Collector      sysgate.Collector
	CachedInterval time.Duration

	Include []string
	Exclude []string

	Stats     *stats.Stats
	Verbosity string
}

// encoded is one published refresh. It is never modified after publication.
type encoded struct {
	snapshot  sysgate.Snapshot
	all       string
	groups    map[string]string
	refreshed time.Time
}

type Provider struct {
	collector sysgate.Collector
	interval  time.Duration
	allowed   sysgate.Filterer
	stats     *stats.Stats
	log       zerolog.Logger

	mu       sync.Mutex // serializes refresh decisions
	throttle throttle.Throttle
	current  atomic.Pointer[encoded]
}

// New creates a Provider and performs the initial refresh.
func New(ctx context.Context, c Config) (*Provider, error) {
	if c.Collector == nil {
		return nil, fmt.Errorf("no collector: %w", sysgate.ErrFatal)
	}

	allowed, err := sysgate.NewFilterer(c.Include, c.Exclude)
	if err != nil {
		return nil, fmt.Errorf("group filter: %w", err)
	}

	st := c.Stats
	if st == nil {
		st = stats.New()
	}

	p := &Provider{
		collector: c.Collector,
		interval:  c.CachedInterval,
		allowed:   allowed,
		stats:     st,
		log:       sysgate.GetLogger("provider", c.Verbosity),
	}

	p.current.Store(&encoded{
		snapshot: sysgate.Snapshot{},
		all:      "{}",
		groups:   map[string]string{},
	})

	if err := p.EnsureFresh(ctx); err != nil {
		return nil, fmt.Errorf("initial refresh: %w", err)
	}

	return p, nil
}

// EnsureFresh refreshes the snapshot if the cached interval has elapsed.
// Concurrent callers that find a refresh due wait for it and reuse its result.
func (p *Provider) EnsureFresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := now()
	if !p.throttle.Due(start) {
		return nil
	}

	snap, err := p.collector.Collect(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Refresh Failed")
		return fmt.Errorf("collect: %w", err)
	}

	p.current.Store(p.encode(snap, start))
	p.throttle.Reset(start, p.interval)
	p.stats.Refreshes.Add(1)

	p.log.Trace().
		Time("next", p.throttle.Deadline()).
		Int("groups", len(snap)).
		Msg("Snapshot Refreshed")

	return nil
}

func (p *Provider) encode(snap sysgate.Snapshot, refreshed time.Time) *encoded {
	enc := &encoded{
		snapshot:  make(sysgate.Snapshot, len(snap)),
		groups:    make(map[string]string, len(snap)),
		refreshed: refreshed,
	}

	raw := make(map[string]json.RawMessage, len(snap))
	for name, payload := range snap {
		if !p.allowed(name) {
			continue
		}

		b, err := json.Marshal(payload)
		if err != nil {
			p.log.Warn().Err(err).Str("group", name).Msg("Group Encode Failed")
			continue
		}

		enc.snapshot[name] = payload
		enc.groups[name] = string(b)
		raw[name] = b
	}

	// map keys are sorted by encoding/json, so equal snapshots encode identically
	all, err := json.Marshal(raw)
	if err != nil {
		p.log.Warn().Err(err).Msg("Snapshot Encode Failed")
		all = []byte("{}")
	}
	enc.all = string(all)

	return enc
}

// Read returns the JSON payload of one group from a fresh snapshot.
func (p *Provider) Read(ctx context.Context, group string) (string, error) {
	if err := p.EnsureFresh(ctx); err != nil {
		return "", err
	}

	payload, ok := p.current.Load().groups[group]
	if !ok {
		return "", fmt.Errorf("%s: %w", group, sysgate.ErrUnknownGroup)
	}

	return payload, nil
}

// ReadAll returns the JSON payload of the whole snapshot.
func (p *Provider) ReadAll(ctx context.Context) (string, error) {
	if err := p.EnsureFresh(ctx); err != nil {
		return "", err
	}

	return p.current.Load().all, nil
}

// Has reports whether group is exposed, either because the collector declares
// it or because the current snapshot holds it.
func (p *Provider) Has(group string) bool {
	if !p.allowed(group) {
		return false
	}

	if _, ok := p.current.Load().snapshot[group]; ok {
		return true
	}

	for _, name := range p.collector.Groups() {
		if name == group {
			return true
		}
	}

	return false
}

// Groups returns the sorted names of every exposed group.
func (p *Provider) Groups() []string {
	seen := make(map[string]struct{})
	for _, name := range p.collector.Groups() {
		seen[name] = struct{}{}
	}
	for name := range p.current.Load().snapshot {
		seen[name] = struct{}{}
	}

	groups := make([]string, 0, len(seen))
	for name := range seen {
		if p.allowed(name) {
			groups = append(groups, name)
		}
	}
	sort.Strings(groups)

	return groups
}

// Snapshot returns the most recently published snapshot without refreshing.
// The returned value must be treated as read-only.
func (p *Provider) Snapshot() sysgate.Snapshot {
	return p.current.Load().snapshot
}

// LastRefresh returns when the published snapshot was collected.
func (p *Provider) LastRefresh() time.Time {
	return p.current.Load().refreshed
}

var now = time.Now
