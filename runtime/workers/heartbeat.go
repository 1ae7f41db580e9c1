package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-probe/contract"
	"chat-probe/observability"
)

var _ contract.Worker = (*HeartbeatWorker)(nil)

// HeartbeatWorker samples the harness's own RSS and CPU alongside the
// run counters. A load generator that saturates its own host produces
// meaningless numbers, the heartbeat makes that visible in the logs.
type HeartbeatWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			stats := w.monitor.GetLatest()
			w.log.Info("Harness heartbeat",
				"rss_mb", rss/(1<<20),
				"cpu_percent", cpu,
				"sessions_active", stats.SessionsActive,
				"sessions_done", stats.SessionsDone,
				"messages_observed", stats.MessagesObserved,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage of the harness process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
