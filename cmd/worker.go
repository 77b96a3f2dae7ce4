package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	attendancePostgres "github.com/frahmantamala/attendance-management/internal/attendance/postgres"
	"github.com/frahmantamala/attendance-management/internal/eventsink"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/internal/report"
	"github.com/frahmantamala/attendance-management/pkg/logger"
	"github.com/spf13/cobra"
)

// relayCursorName is the event_cursors row owned by the SQS relay.
const relayCursorName = "sqs-relay"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers: the event log relay to SQS and the report cache warmer.`,
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Relay the attendance event log to SQS",
	Long:  `Follow attendance_events from the persisted cursor and send every event to the configured SQS queue`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var reportWorkerCmd = &cobra.Command{
	Use:   "reports",
	Short: "Start the report cache warmer",
	Long:  `Precompute yesterday's daily summary into the report cache on a cron schedule`,
	Run: func(cmd *cobra.Command, args []string) {
		startReportWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	warmNow      bool
)

func startEventWorker() {
	cfg, err := loadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.LoggerWrapper()

	if !cfg.SQS.Enabled {
		lg.Error("sqs relay is disabled, set sqs.enabled to run the events worker")
		os.Exit(1)
	}

	db, sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		lg.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := eventsink.NewSQSClient(ctx, cfg.SQS)
	if err != nil {
		lg.Error("failed to create sqs client", "error", err)
		os.Exit(1)
	}
	publisher := eventsink.NewSQSPublisher(client, cfg.SQS.QueueURL, lg)

	poolConfig := eventsink.PoolConfig{
		MaxWorkers:   getIntFlag(maxWorkers, cfg.SQS.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, cfg.SQS.QueueSize),
	}
	pool := eventsink.NewPool(poolConfig, publisher.Send, lg)

	// a batch larger than the queue would always be cut short by ErrQueueFull
	batchSize := cfg.SQS.BatchSize
	if poolConfig.JobQueueSize > 0 && batchSize > poolConfig.JobQueueSize {
		batchSize = poolConfig.JobQueueSize
	}

	poller := feed.NewLogPoller(attendancePostgres.NewStore(db, lg), pool.SendBatch, feed.PollerOptions{
		Name:      relayCursorName,
		Interval:  cfg.Events.PollInterval,
		BatchSize: batchSize,
		Cursor:    attendancePostgres.NewCursorStore(db),
		GapGrace:  cfg.Events.GapGrace,
	}, lg)

	lg.Info("starting event relay worker",
		"queue_url", cfg.SQS.QueueURL,
		"max_workers", poolConfig.MaxWorkers,
		"job_queue_size", poolConfig.JobQueueSize,
		"batch_size", batchSize)

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("event relay stopped", "error", err)
	}

	shutdownWithTimeout(pool.Shutdown, 30*time.Second, "event relay pool")
	lg.Info("event relay worker stopped", "position", poller.Position())
}

func startReportWorker() {
	cfg, err := loadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.LoggerWrapper()

	rdb := initRedis(cfg.Redis)
	if rdb == nil {
		lg.Warn("redis is disabled, warmed summaries will not be kept")
	} else {
		defer rdb.Close()
	}

	_, sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		lg.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer sqlxDB.Close()

	loc, err := cfg.Attendance.Location()
	if err != nil {
		lg.Error("failed to load timezone", "error", err)
		os.Exit(1)
	}

	warmer := report.NewWarmer(newReportService(cfg, sqlxDB, rdb, loc, lg), cfg.Reports.WarmSchedule, lg)
	if warmNow {
		if err := warmer.WarmYesterday(context.Background()); err != nil {
			lg.Error("failed to warm daily summary", "error", err)
		}
	}
	if err := warmer.Start(); err != nil {
		lg.Error("invalid warm schedule", "schedule", cfg.Reports.WarmSchedule, "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	lg.Info("report worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	lg.Info("received signal, shutting down report worker", "signal", sig)
	shutdownWithTimeout(warmer.Stop, 30*time.Second, "report warmer")
}

func shutdownWithTimeout(stop func(), timeout time.Duration, name string) {
	lg := logger.LoggerWrapper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
		lg.Info("shutdown complete", "component", name)
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached, forcing exit", "component", name)
	}
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	eventWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Number of concurrent senders (overrides sqs.max_workers)")
	eventWorkerCmd.Flags().IntVar(&jobQueueSize, "queue-size", 0, "Pending send queue size (overrides sqs.queue_size)")
	reportWorkerCmd.Flags().BoolVar(&warmNow, "now", false, "Warm yesterday's summary once before scheduling")

	workerCmd.AddCommand(eventWorkerCmd)
	workerCmd.AddCommand(reportWorkerCmd)
}
