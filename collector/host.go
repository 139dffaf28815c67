package collector

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
)

type systemInfo struct {
	Hostname    string `json:"hostname"`
	OSName      string `json:"os_name"`
	Platform    string `json:"platform"`
	LinuxDistro string `json:"linux_distro"`
	OSVersion   string `json:"os_version"`
	HRName      string `json:"hr_name"`
}

func system(ctx context.Context) (any, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("host info: %w", err)
	}

	s := systemInfo{
		Hostname:  info.Hostname,
		OSName:    info.OS,
		Platform:  info.KernelArch,
		OSVersion: info.KernelVersion,
	}

	if info.OS == "linux" {
		s.LinuxDistro = info.Platform + " " + info.PlatformVersion
		s.HRName = fmt.Sprintf("%s %s", s.LinuxDistro, info.KernelArch)
	} else {
		s.HRName = fmt.Sprintf("%s %s %s", info.OS, info.PlatformVersion, info.KernelArch)
	}

	return s, nil
}

func uptime(ctx context.Context) (any, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}

	return formatUptime(time.Duration(secs) * time.Second), nil
}

// formatUptime renders d as "[N day(s), ]H:MM:SS".
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)

	days := secs / 86400
	secs %= 86400
	clock := fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)

	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

func currentTime(context.Context) (any, error) {
	return now().Format("2006-01-02 15:04:05 MST"), nil
}

type coreCount struct {
	Physical int `json:"phys"`
	Logical  int `json:"log"`
}

func core(ctx context.Context) (any, error) {
	logical, err := cpu.CountsWithContext(ctx, true)
	if err != nil || logical == 0 {
		logical = runtime.NumCPU()
	}

	physical, err := cpu.CountsWithContext(ctx, false)
	if err != nil || physical == 0 {
		physical = logical
	}

	return coreCount{Physical: physical, Logical: logical}, nil
}

type loadAverage struct {
	Min1    float64 `json:"min1"`
	Min5    float64 `json:"min5"`
	Min15   float64 `json:"min15"`
	CPUCore int     `json:"cpucore"`
}

func loadAvg(ctx context.Context) (any, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	return loadAverage{
		Min1:    avg.Load1,
		Min5:    avg.Load5,
		Min15:   avg.Load15,
		CPUCore: runtime.NumCPU(),
	}, nil
}

type sensor struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
	Unit     string  `json:"unit"`
	Type     string  `json:"type"`
}

func sensors(ctx context.Context) (any, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, fmt.Errorf("sensors: %w", err)
	}

	list := make([]sensor, 0, len(temps))
	for _, t := range temps {
		list = append(list, sensor{
			Label:    t.SensorKey,
			Value:    t.Temperature,
			Warning:  t.High,
			Critical: t.Critical,
			Unit:     "C",
			Type:     "temperature_core",
		})
	}

	return list, nil
}
