package main

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/cloudbox/sysgate/provider"
	"github.com/cloudbox/sysgate/stats"
)

// startStats schedules gatewayStats on schedule. An empty schedule disables it.
func startStats(schedule string, st *stats.Stats, prov *provider.Provider) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	cronInst := cron.New()

	job := cron.FuncJob(func() {
		gatewayStats(st, prov)
	})

	_, err := cronInst.AddJob(schedule, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job))
	if err != nil {
		return nil, fmt.Errorf("stats schedule %q: %w", schedule, err)
	}

	cronInst.Start()
	return cronInst, nil
}

func gatewayStats(st *stats.Stats, prov *provider.Provider) {
	snap := st.Snapshot()

	log.Info().
		Int64("calls", snap.Calls).
		Int64("faults", snap.Faults).
		Int64("rejected", snap.Rejected).
		Int64("refreshes", snap.Refreshes).
		Int("groups", len(prov.Snapshot())).
		Time("last_refresh", prov.LastRefresh()).
		Msg("Gateway Stats")

	status := fmt.Sprintf(
		"STATUS=calls: %d | faults: %d | rejected: %d | refreshes: %d",
		snap.Calls, snap.Faults, snap.Rejected, snap.Refreshes,
	)
	_, _ = daemon.SdNotify(false, status)
}
