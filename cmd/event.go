package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	attendancePostgres "github.com/frahmantamala/attendance-management/internal/attendance/postgres"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event log commands",
	Long:  `Inspect the attendance event log`,
}

var tailEventCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print attendance events as they are appended",
	Long:  `Follow the attendance event log from its current head and print each event as a JSON line`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tailEvents(cmd)
	},
}

var (
	tailUserID     int64
	tailEmployeeID int64
)

func tailEvents(cmd *cobra.Command) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	db, sqlxDB, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer sqlxDB.Close()

	var filter feed.Filter
	if cmd.Flags().Changed("user-id") {
		filter.UserID = &tailUserID
	}
	if cmd.Flags().Changed("employee-id") {
		filter.EmployeeID = &tailEmployeeID
	}

	enc := json.NewEncoder(os.Stdout)
	emit := func(_ context.Context, ev *attendance.Event) error {
		if !filter.Match(ev) {
			return nil
		}
		return enc.Encode(ev)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := feed.NewLogPoller(attendancePostgres.NewStore(db, lg), feed.Each(emit), feed.PollerOptions{
		Name:     "cli-tail",
		Interval: cfg.Events.PollInterval,
		GapGrace: cfg.Events.GapGrace,
	}, lg)

	fmt.Fprintln(os.Stderr, "waiting for attendance events, press Ctrl+C to stop")
	return poller.Run(ctx)
}

func init() {
	tailEventCmd.Flags().Int64Var(&tailUserID, "user-id", 0, "Only print events for this user")
	tailEventCmd.Flags().Int64Var(&tailEmployeeID, "employee-id", 0, "Only print events for this employee")

	eventCmd.AddCommand(tailEventCmd)
}
