package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

type memoryUsage struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
	Used      uint64  `json:"used"`
	Free      uint64  `json:"free"`
	Active    uint64  `json:"active"`
	Inactive  uint64  `json:"inactive"`
	Buffers   uint64  `json:"buffers"`
	Cached    uint64  `json:"cached"`
	Shared    uint64  `json:"shared"`
}

func memory(ctx context.Context) (any, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	return memoryUsage{
		Total:     vm.Total,
		Available: vm.Available,
		Percent:   round(vm.UsedPercent),
		Used:      vm.Used,
		Free:      vm.Free,
		Active:    vm.Active,
		Inactive:  vm.Inactive,
		Buffers:   vm.Buffers,
		Cached:    vm.Cached,
		Shared:    vm.Shared,
	}, nil
}

type swapUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
	Sin     uint64  `json:"sin"`
	Sout    uint64  `json:"sout"`
}

func swap(ctx context.Context) (any, error) {
	sm, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("swap memory: %w", err)
	}

	return swapUsage{
		Total:   sm.Total,
		Used:    sm.Used,
		Free:    sm.Free,
		Percent: round(sm.UsedPercent),
		Sin:     sm.Sin,
		Sout:    sm.Sout,
	}, nil
}
