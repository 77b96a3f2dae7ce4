package eventsink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/frahmantamala/attendance-management/internal/attendance"
)

// ErrQueueFull is returned by Submit when the job queue has no room.
var ErrQueueFull = errors.New("event relay queue full")

// Job is one event waiting to be sent. Done receives the send result.
type Job struct {
	Event *attendance.Event
	Done  chan error
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("relay worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("relay worker processing event", "worker_id", w.ID, "event_id", job.Event.ID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("relay worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type PoolConfig struct {
	MaxWorkers   int
	JobQueueSize int
}

// Pool sends events through a fixed set of workers fed by a dispatcher.
type Pool struct {
	send   func(context.Context, *attendance.Event) error
	logger *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewPool(config PoolConfig, send func(context.Context, *attendance.Event) error, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	p := &Pool{
		send:       send,
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, jobQueueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("event relay worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					job.Done <- context.Canceled
					return
				}
			case <-p.ctx.Done():
				job.Done <- context.Canceled
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("event relay dispatcher shutting down")
			return
		}
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	job.Done <- p.send(ctx, job.Event)
}

// Submit queues ev without waiting for it to be sent.
func (p *Pool) Submit(ev *attendance.Event) (<-chan error, error) {
	job := Job{Event: ev, Done: make(chan error, 1)}
	select {
	case <-p.ctx.Done():
		return nil, context.Canceled
	default:
	}
	select {
	case p.jobQueue <- job:
		return job.Done, nil
	default:
		p.logger.Warn("event relay queue full", "event_id", ev.ID, "queue_capacity", cap(p.jobQueue))
		return nil, ErrQueueFull
	}
}

// SendBatch sends evs concurrently and waits for every result. It returns
// the length of the leading run of successful sends and the first error.
func (p *Pool) SendBatch(ctx context.Context, evs []*attendance.Event) (int, error) {
	results := make([]<-chan error, 0, len(evs))
	var submitErr error
	for _, ev := range evs {
		done, err := p.Submit(ev)
		if err != nil {
			submitErr = err
			break
		}
		results = append(results, done)
	}

	delivered := 0
	var firstErr error
	for _, done := range results {
		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-p.ctx.Done():
			err = context.Canceled
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if firstErr == nil {
			delivered++
		}
	}
	if firstErr == nil {
		firstErr = submitErr
	}
	return delivered, firstErr
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down event relay pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("event relay pool shutdown complete")
}
