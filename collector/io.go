package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/net"
)

// counterState keeps the previous cumulative counters of a set of devices.
type counterState struct {
	prev map[string][]uint64
	at   time.Time
}

// advance stores cur for name and returns the per-counter deltas against the
// previous sample, all zero for a device seen for the first time.
func (s *counterState) advance(next map[string][]uint64, name string, cur []uint64) []uint64 {
	next[name] = cur

	deltas := make([]uint64, len(cur))
	prev, ok := s.prev[name]
	if !ok || len(prev) != len(cur) {
		return deltas
	}

	for i := range cur {
		deltas[i] = delta(prev[i], cur[i])
	}

	return deltas
}

type networkInterface struct {
	Interface       string  `json:"interface_name"`
	CumulativeRx    uint64  `json:"cumulative_rx"`
	CumulativeTx    uint64  `json:"cumulative_tx"`
	CumulativeCx    uint64  `json:"cumulative_cx"`
	Rx              uint64  `json:"rx"`
	Tx              uint64  `json:"tx"`
	Cx              uint64  `json:"cx"`
	TimeSinceUpdate float64 `json:"time_since_update"`
}

func (s *counterState) collectNetwork(ctx context.Context) (any, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("network counters: %w", err)
	}

	t := now()
	since := sinceUpdate(s.at, t)
	next := make(map[string][]uint64, len(counters))

	list := make([]networkInterface, 0, len(counters))
	for _, c := range counters {
		d := s.advance(next, c.Name, []uint64{c.BytesRecv, c.BytesSent})
		list = append(list, networkInterface{
			Interface:       c.Name,
			CumulativeRx:    c.BytesRecv,
			CumulativeTx:    c.BytesSent,
			CumulativeCx:    c.BytesRecv + c.BytesSent,
			Rx:              d[0],
			Tx:              d[1],
			Cx:              d[0] + d[1],
			TimeSinceUpdate: since,
		})
	}

	s.prev, s.at = next, t
	return list, nil
}

type diskIO struct {
	Disk            string  `json:"disk_name"`
	ReadCount       uint64  `json:"read_count"`
	WriteCount      uint64  `json:"write_count"`
	ReadBytes       uint64  `json:"read_bytes"`
	WriteBytes      uint64  `json:"write_bytes"`
	TimeSinceUpdate float64 `json:"time_since_update"`
}

func (s *counterState) collectDisks(ctx context.Context) (any, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("disk counters: %w", err)
	}

	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	t := now()
	since := sinceUpdate(s.at, t)
	next := make(map[string][]uint64, len(counters))

	list := make([]diskIO, 0, len(counters))
	for _, name := range names {
		c := counters[name]
		d := s.advance(next, name, []uint64{c.ReadCount, c.WriteCount, c.ReadBytes, c.WriteBytes})
		list = append(list, diskIO{
			Disk:            name,
			ReadCount:       d[0],
			WriteCount:      d[1],
			ReadBytes:       d[2],
			WriteBytes:      d[3],
			TimeSinceUpdate: since,
		})
	}

	s.prev, s.at = next, t
	return list, nil
}

type filesystem struct {
	Device  string  `json:"device_name"`
	FSType  string  `json:"fs_type"`
	Mount   string  `json:"mnt_point"`
	Size    uint64  `json:"size"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
	Key     string  `json:"key"`
}

func filesystems(ctx context.Context) (any, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}

	list := make([]filesystem, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}

		list = append(list, filesystem{
			Device:  p.Device,
			FSType:  p.Fstype,
			Mount:   p.Mountpoint,
			Size:    usage.Total,
			Used:    usage.Used,
			Free:    usage.Free,
			Percent: round(usage.UsedPercent),
			Key:     "mnt_point",
		})
	}

	return list, nil
}
