package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-probe/contract"
	"chat-probe/domain"
	"chat-probe/errors"
	"chat-probe/internal"
	"chat-probe/observability"
	"chat-probe/report"
	"chat-probe/repositories"
	"chat-probe/restapi"
	"chat-probe/runtime"
	"chat-probe/runtime/workers"
	"chat-probe/session"
)

// Exit codes to provide meaningful status to the operating system or a CI pipeline.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe terminated with error: %v\n", err)
	}
	os.Exit(code)
}

type runOutcome struct {
	results []domain.SessionResult
	err     error
}

// run wires the whole scenario: config, auth fan-out, room resolution,
// concurrent sessions, aggregation. Returning the exit code instead of
// calling os.Exit keeps every defer (workers, report) running.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config validation: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Shutdown signals cancel the run; in-flight sessions then get
	// a bounded grace period to disconnect cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Components
	users := domain.Fixtures(config.Users)
	restClient := restapi.NewClient(config.BaseURL, config.ConnectTimeout, logger)
	tokens := repositories.NewTokenRepository()
	monitor := observability.NewMonitor()

	runID := uuid.NewString()[:8]
	opts := session.Options{
		WSURL:          config.WSURL,
		ConnectTimeout: config.ConnectTimeout,
		SettleDelay:    config.SettleDelay,
		ObserveWindow:  config.ObserveWindow,
		RunID:          runID,
	}
	factory := func(cred domain.Credential, token domain.Token, room domain.Room) contract.SessionRunner {
		return session.NewDriver(logger, opts, cred, token, room)
	}
	coordinator := runtime.NewCoordinator(logger, restClient, restClient, tokens, factory, monitor)

	// 4. Ambient workers for the duration of the run
	supervisor := workers.NewSupervisor(logger).Add(
		workers.NewHeartbeatWorker(logger, monitor, config.HeartbeatInterval),
		workers.NewProgressWorker(monitor, time.Second),
	)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		supervisor.Run(workerCtx)
		close(workersDone)
	}()

	// 5. The run itself
	logger.Info("Starting run", "run_id", runID, "users", config.Users, "base_url", config.BaseURL)
	start := time.Now()

	done := make(chan runOutcome, 1)
	go func() {
		results, _, err := coordinator.Run(ctx, users)
		done <- runOutcome{results: results, err: err}
	}()

	outcome, forced := awaitOutcome(ctx, logger, done, config.ShutdownGrace)
	elapsed := time.Since(start)

	stopWorkers()
	<-workersDone

	// 6. Report & exit policy. The report renders even on a forced
	// shutdown: sessions that did terminate are never discarded.
	rep := report.Build(outcome.results, elapsed)
	rep.Render(os.Stdout, config.ShowDetail)

	if forced {
		return exitRuntime, fmt.Errorf("forced shutdown: sessions did not terminate within %s", config.ShutdownGrace)
	}
	if outcome.err != nil {
		return exitRuntime, outcome.err
	}
	if rep.ExceedsThreshold(config.FailureThreshold) {
		return exitRuntime, fmt.Errorf("%w: %.2f > %.2f",
			errors.ErrFailureThreshold, rep.FailureRatio(), config.FailureThreshold)
	}
	return exitOK, nil
}

// awaitOutcome blocks until the run finishes or, after a shutdown
// signal, the grace period runs out. On the forced path it makes one
// last non-blocking attempt to pick up an outcome that landed at the
// deadline, so finished sessions still reach the report.
func awaitOutcome(ctx context.Context, logger *slog.Logger, done <-chan runOutcome, grace time.Duration) (runOutcome, bool) {
	select {
	case outcome := <-done:
		return outcome, false
	case <-ctx.Done():
	}

	logger.Warn("Shutdown requested, waiting for sessions to disconnect", "grace", grace)
	select {
	case outcome := <-done:
		return outcome, false
	case <-time.After(grace):
	}

	select {
	case outcome := <-done:
		return outcome, false
	default:
		return runOutcome{}, true
	}
}
