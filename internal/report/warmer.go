package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/robfig/cron/v3"
)

const DefaultWarmSchedule = "5 0 * * *"

// Warmer precomputes yesterday's daily summary on a cron schedule.
type Warmer struct {
	service  *Service
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewWarmer(service *Service, schedule string, logger *slog.Logger) *Warmer {
	if schedule == "" {
		schedule = DefaultWarmSchedule
	}
	return &Warmer{
		service:  service,
		cron:     cron.New(cron.WithLocation(service.opts.Location)),
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger,
	}
}

func (w *Warmer) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.runOnce); err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("report warmer scheduled", "schedule", w.schedule)
	return nil
}

// Stop waits for a running job to finish.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Warmer) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.WarmYesterday(ctx); err != nil {
		w.logger.Error("failed to warm daily summary", "error", err)
	}
}

func (w *Warmer) WarmYesterday(ctx context.Context) error {
	day := attendance.DayOf(w.service.opts.Now().AddDate(0, 0, -1), w.service.opts.Location)
	if err := w.service.WarmDailySummary(ctx, day); err != nil {
		return err
	}
	w.logger.Info("daily summary cached", "date", day)
	return nil
}
