package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
)

// EventLog is the durable, ordered event table read by LogPoller.
type EventLog interface {
	ListEventsAfter(ctx context.Context, seq int64, limit int) ([]*attendance.Event, error)
	LatestEventSeq(ctx context.Context) (int64, error)
}

// CursorStore persists a follower's position so it survives restarts.
type CursorStore interface {
	Load(ctx context.Context, name string) (int64, error)
	Save(ctx context.Context, name string, seq int64) error
}

// Sink receives events in log order. Returning an error stops the batch;
// the failed event is retried on the next poll.
type Sink func(ctx context.Context, ev *attendance.Event) error

// BatchSink receives a whole batch and reports how many leading events were
// delivered. The cursor only moves past that prefix.
type BatchSink func(ctx context.Context, evs []*attendance.Event) (int, error)

// Each turns a per-event Sink into a BatchSink.
func Each(sink Sink) BatchSink {
	return func(ctx context.Context, evs []*attendance.Event) (int, error) {
		for i, ev := range evs {
			if err := sink(ctx, ev); err != nil {
				return i, fmt.Errorf("deliver event %s (seq %d): %w", ev.ID, ev.Seq, err)
			}
		}
		return len(evs), nil
	}
}

// DefaultGapGrace is how long a follower waits for a missing sequence
// number before treating it as a rolled back append.
const DefaultGapGrace = 10 * time.Second

type PollerOptions struct {
	// Name identifies the cursor row. Required when Cursor is set.
	Name      string
	Interval  time.Duration
	BatchSize int
	Cursor    CursorStore
	// GapGrace bounds how long delivery waits at a hole in the sequence.
	// Sequence numbers are taken at insert time, so a lower seq can become
	// visible after a higher one; a hole that never fills was rolled back.
	GapGrace time.Duration
	// OnHealth is told when the log becomes readable or unreadable.
	OnHealth func(ok bool)
	Now      func() time.Time
}

// LogPoller follows the event log by sequence number. Without a cursor it
// starts at the current head, so only events appended after Run are seen.
type LogPoller struct {
	log      EventLog
	sink     BatchSink
	opts     PollerOptions
	position atomic.Int64
	healthy  atomic.Bool
	logger   *slog.Logger

	// gapSeq is the missing seq delivery is waiting on, gapSince when the
	// wait began. Only touched by PollOnce.
	gapSeq   int64
	gapSince time.Time
}

func NewLogPoller(log EventLog, sink BatchSink, opts PollerOptions, logger *slog.Logger) *LogPoller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.GapGrace <= 0 {
		opts.GapGrace = DefaultGapGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &LogPoller{log: log, sink: sink, opts: opts, logger: logger}
	p.healthy.Store(true)
	return p
}

func (p *LogPoller) Position() int64 { return p.position.Load() }

// Start resolves the starting sequence.
func (p *LogPoller) Start(ctx context.Context) error {
	if p.opts.Cursor != nil {
		seq, err := p.opts.Cursor.Load(ctx, p.opts.Name)
		if err != nil {
			return fmt.Errorf("load cursor %q: %w", p.opts.Name, err)
		}
		p.position.Store(seq)
		return nil
	}
	seq, err := p.log.LatestEventSeq(ctx)
	if err != nil {
		return fmt.Errorf("read event log head: %w", err)
	}
	p.position.Store(seq)
	return nil
}

func (p *LogPoller) Run(ctx context.Context) error {
	for {
		err := p.Start(ctx)
		if err == nil {
			break
		}
		p.setHealth(false)
		p.logger.Error("failed to start event log poller", "name", p.opts.Name, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.opts.Interval):
		}
	}
	p.logger.Info("event log poller started", "name", p.opts.Name, "from_seq", p.Position())

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		for {
			n, err := p.PollOnce(ctx)
			if err != nil {
				p.logger.Error("failed to poll event log", "name", p.opts.Name, "error", err)
				break
			}
			if n < p.opts.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("event log poller stopped", "name", p.opts.Name, "at_seq", p.Position())
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce reads one batch and hands it to the sink. It returns how many
// events were delivered.
func (p *LogPoller) PollOnce(ctx context.Context) (int, error) {
	from := p.Position()
	evs, err := p.log.ListEventsAfter(ctx, from, p.opts.BatchSize)
	if err != nil {
		p.setHealth(false)
		return 0, fmt.Errorf("list events after %d: %w", from, err)
	}
	p.setHealth(true)

	evs = p.holdAtGap(from, evs)
	if len(evs) == 0 {
		return 0, nil
	}
	delivered, sinkErr := p.sink(ctx, evs)
	if delivered > len(evs) {
		delivered = len(evs)
	}
	if delivered > 0 {
		p.position.Store(evs[delivered-1].Seq)
	}

	if delivered > 0 && p.opts.Cursor != nil {
		if err := p.opts.Cursor.Save(ctx, p.opts.Name, p.Position()); err != nil {
			p.logger.Warn("failed to save poller cursor", "name", p.opts.Name, "seq", p.Position(), "error", err)
		}
	}
	return delivered, sinkErr
}

// holdAtGap trims evs to the run that follows from without a hole. A hole
// at the front holds delivery until it fills or GapGrace passes, after
// which delivery resumes at the next visible seq.
func (p *LogPoller) holdAtGap(from int64, evs []*attendance.Event) []*attendance.Event {
	if len(evs) == 0 {
		p.gapSeq = 0
		return nil
	}
	if evs[0].Seq == from+1 {
		p.gapSeq = 0
		return contiguousRun(evs)
	}

	missing := from + 1
	now := p.opts.Now()
	if p.gapSeq != missing {
		p.gapSeq, p.gapSince = missing, now
		p.logger.Debug("event log gap, waiting", "name", p.opts.Name, "missing_seq", missing, "next_seq", evs[0].Seq)
		return nil
	}
	if now.Sub(p.gapSince) < p.opts.GapGrace {
		return nil
	}
	p.logger.Warn("skipping event log gap", "name", p.opts.Name,
		"missing_from", missing, "resume_at", evs[0].Seq, "waited", now.Sub(p.gapSince))
	p.gapSeq = 0
	return contiguousRun(evs)
}

// contiguousRun is the leading part of evs with consecutive seqs.
func contiguousRun(evs []*attendance.Event) []*attendance.Event {
	for i := 1; i < len(evs); i++ {
		if evs[i].Seq != evs[i-1].Seq+1 {
			return evs[:i]
		}
	}
	return evs
}

func (p *LogPoller) setHealth(ok bool) {
	if p.healthy.Swap(ok) == ok {
		return
	}
	if p.opts.OnHealth != nil {
		p.opts.OnHealth(ok)
	}
}
