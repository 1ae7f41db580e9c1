package workers

import (
	"context"
	"fmt"
	"time"

	"chat-probe/contract"
	"chat-probe/observability"
)

var _ contract.Worker = (*ProgressWorker)(nil)

// ProgressWorker prints a one-line live view of the run to the console.
type ProgressWorker struct {
	monitor  *observability.Monitor
	interval time.Duration
}

func NewProgressWorker(monitor *observability.Monitor, interval time.Duration) *ProgressWorker {
	return &ProgressWorker{monitor: monitor, interval: interval}
}

func (w *ProgressWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.printStats(startTime)
			fmt.Println()
			return ctx.Err()
		case <-ticker.C:
			w.printStats(startTime)
		}
	}
}

func (w *ProgressWorker) printStats(startTime time.Time) {
	stats := w.monitor.GetLatest()
	duration := time.Since(startTime).Round(time.Second).String()

	fmt.Printf("\r[%s] active: %d | done: %d | failed: %d | observed: %d",
		duration,
		stats.SessionsActive,
		stats.SessionsDone,
		stats.SessionsFailed,
		stats.MessagesObserved,
	)
}
