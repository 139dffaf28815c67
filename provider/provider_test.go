package provider

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudbox/sysgate"
	"github.com/cloudbox/sysgate/stats"
)

type fakeCollector struct {
	calls atomic.Int64
	err   error
}

func (*fakeCollector) Groups() []string {
	return []string{"cpu", "mem", "sensors"}
}

func (f *fakeCollector) Collect(context.Context) (sysgate.Snapshot, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}

	return sysgate.Snapshot{
		"cpu": map[string]any{"generation": n},
		"mem": map[string]any{"generation": n},
	}, nil
}

// setClock pins now to a controllable instant for the duration of the test.
func setClock(t *testing.T) *time.Time {
	t.Helper()

	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return current }
	t.Cleanup(func() { now = time.Now })

	return &current
}

func newProvider(t *testing.T, fc *fakeCollector, interval time.Duration, excludes ...string) *Provider {
	t.Helper()

	p, err := New(context.Background(), Config{
		Collector:      fc,
		CachedInterval: interval,
		Exclude:        excludes,
		Stats:          stats.New(),
	})
	if err != nil {
		t.Fatal(err)
	}

	return p
}

func TestNewPerformsInitialRefresh(t *testing.T) {
	setClock(t)
	fc := &fakeCollector{}
	p := newProvider(t, fc, time.Second)

	if got := fc.calls.Load(); got != 1 {
		t.Fatalf("expected 1 collect call, got %d", got)
	}
	if got := p.stats.Snapshot().Refreshes; got != 1 {
		t.Errorf("expected 1 refresh counted, got %d", got)
	}
}

func TestNewRequiresCollector(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if !errors.Is(err, sysgate.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
}

func TestReadsWithinIntervalRefreshOnce(t *testing.T) {
	clock := setClock(t)
	fc := &fakeCollector{}
	p := newProvider(t, fc, time.Second)
	ctx := context.Background()

	// past the initial deadline: exactly one more refresh for the whole burst
	*clock = clock.Add(time.Second)
	for range 50 {
		if _, err := p.Read(ctx, "cpu"); err != nil {
			t.Fatal(err)
		}
		if _, err := p.ReadAll(ctx); err != nil {
			t.Fatal(err)
		}
		*clock = clock.Add(10 * time.Millisecond)
	}

	if got := fc.calls.Load(); got != 2 {
		t.Errorf("expected 2 collect calls, got %d", got)
	}
}

func TestZeroIntervalRefreshesEveryRead(t *testing.T) {
	setClock(t)
	fc := &fakeCollector{}
	p := newProvider(t, fc, 0)

	for range 5 {
		if _, err := p.Read(context.Background(), "mem"); err != nil {
			t.Fatal(err)
		}
	}

	if got := fc.calls.Load(); got != 6 {
		t.Errorf("expected 6 collect calls, got %d", got)
	}
}

func TestReadReturnsGroupPayload(t *testing.T) {
	setClock(t)
	p := newProvider(t, &fakeCollector{}, time.Second)

	payload, err := p.Read(context.Background(), "cpu")
	if err != nil {
		t.Fatal(err)
	}

	if payload != `{"generation":1}` {
		t.Errorf("unexpected payload %s", payload)
	}
}

func TestReadAllIsStableWithinInterval(t *testing.T) {
	clock := setClock(t)
	p := newProvider(t, &fakeCollector{}, time.Second)
	ctx := context.Background()

	first, err := p.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	*clock = clock.Add(500 * time.Millisecond)
	second, err := p.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("expected identical payloads, got %s and %s", first, second)
	}

	*clock = clock.Add(600 * time.Millisecond)
	third, err := p.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if third == first {
		t.Error("expected a refreshed payload after the interval")
	}

	var decoded map[string]map[string]int
	if err := json.Unmarshal([]byte(third), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["cpu"]["generation"] != 2 {
		t.Errorf("expected generation 2, got %v", decoded)
	}
}

func TestReadUnknownGroup(t *testing.T) {
	setClock(t)
	p := newProvider(t, &fakeCollector{}, time.Second)

	// declared by the collector but absent from the snapshot
	_, err := p.Read(context.Background(), "sensors")
	if !errors.Is(err, sysgate.ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}

	_, err = p.Read(context.Background(), "nonexistent")
	if !errors.Is(err, sysgate.ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}
}

func TestExcludedGroupsAreHidden(t *testing.T) {
	setClock(t)
	p := newProvider(t, &fakeCollector{}, time.Second, "^mem$")

	if p.Has("mem") {
		t.Error("expected mem to be hidden")
	}
	if !p.Has("cpu") {
		t.Error("expected cpu to be exposed")
	}

	if _, err := p.Read(context.Background(), "mem"); !errors.Is(err, sysgate.ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}

	all, err := p.ReadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if all != `{"cpu":{"generation":1}}` {
		t.Errorf("unexpected payload %s", all)
	}

	if want := []string{"cpu", "sensors"}; !reflect.DeepEqual(p.Groups(), want) {
		t.Errorf("Groups() = %v, want %v", p.Groups(), want)
	}
}

func TestHas(t *testing.T) {
	setClock(t)
	p := newProvider(t, &fakeCollector{}, time.Second)

	testCases := map[string]bool{
		"cpu":         true,
		"sensors":     true,
		"nonexistent": false,
		"":            false,
	}

	for group, want := range testCases {
		if got := p.Has(group); got != want {
			t.Errorf("Has(%q) = %v, want %v", group, got, want)
		}
	}
}

func TestCollectErrorKeepsSnapshotAndRetries(t *testing.T) {
	clock := setClock(t)
	fc := &fakeCollector{}
	p := newProvider(t, fc, time.Second)
	ctx := context.Background()

	before, _ := p.ReadAll(ctx)

	fc.err = errors.New("collector down")
	*clock = clock.Add(2 * time.Second)

	if _, err := p.ReadAll(ctx); err == nil {
		t.Fatal("expected collector error")
	}
	if got := p.stats.Snapshot().Refreshes; got != 1 {
		t.Errorf("failed refresh should not be counted, got %d", got)
	}

	fc.err = nil
	after, err := p.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if after == before {
		t.Error("expected retry to publish a new snapshot")
	}
	if got := fc.calls.Load(); got != 3 {
		t.Errorf("expected 3 collect calls, got %d", got)
	}
}

func TestConcurrentDueReadsRefreshOnce(t *testing.T) {
	clock := setClock(t)
	fc := &fakeCollector{}
	p := newProvider(t, fc, time.Second)

	*clock = clock.Add(2 * time.Second)

	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Read(context.Background(), "cpu"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := fc.calls.Load(); got != 2 {
		t.Errorf("expected 2 collect calls, got %d", got)
	}
}

func TestConcurrentReadsSeeCompleteSnapshots(t *testing.T) {
	setClock(t)
	p := newProvider(t, &fakeCollector{}, 0)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				all, err := p.ReadAll(context.Background())
				if err != nil {
					t.Error(err)
					return
				}

				var decoded map[string]map[string]int64
				if err := json.Unmarshal([]byte(all), &decoded); err != nil {
					t.Error(err)
					return
				}

				if decoded["cpu"]["generation"] != decoded["mem"]["generation"] {
					t.Errorf("mixed snapshot: %s", all)
					return
				}
			}
		}()
	}
	wg.Wait()
}
