package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"medgate/pkg/requestcontext"
)

const (
	DefaultQueueSize   = 1024
	DefaultWorkers     = 4
	DefaultTaskTimeout = 5 * time.Second
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("dispatcher closed")

// Observer is notified of task outcomes. Implementations must be cheap.
type Observer interface {
	TaskSucceeded(kind string)
	TaskFailed(kind string)
	TaskDropped(kind string)
}

type job struct {
	ctx  context.Context
	kind string
	run  func(context.Context) error
}

// Dispatcher runs post-response tasks on a bounded worker pool. Submitting
// never blocks: a full queue drops the task.
type Dispatcher struct {
	queue    chan job
	workers  int
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan job, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithTaskTimeout bounds each task. Non-positive values are ignored.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan job, DefaultQueueSize),
		workers: DefaultWorkers,
		timeout: DefaultTaskTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for range d.workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit schedules run. The task context keeps ctx's values but not its
// cancellation, so a disconnected client does not abort persistence. Returns
// false when the task was dropped.
func (d *Dispatcher) Submit(ctx context.Context, kind string, run func(context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, kind, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), kind: kind, run: run}:
		return true
	default:
		d.drop(ctx, kind, "queue full")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.ErrorContext(ctx, "post-response task panicked", "kind", j.kind, "panic", rec,
				"request_id", requestcontext.RequestID(ctx))
			if d.observer != nil {
				d.observer.TaskFailed(j.kind)
			}
		}
	}()

	if err := j.run(ctx); err != nil {
		d.logger.WarnContext(ctx, "post-response task failed", "kind", j.kind, "error", err,
			"request_id", requestcontext.RequestID(ctx))
		if d.observer != nil {
			d.observer.TaskFailed(j.kind)
		}
		return
	}
	if d.observer != nil {
		d.observer.TaskSucceeded(j.kind)
	}
}

func (d *Dispatcher) drop(ctx context.Context, kind, reason string) {
	d.logger.WarnContext(ctx, "post-response task dropped", "kind", kind, "reason", reason,
		"request_id", requestcontext.RequestID(ctx))
	if d.observer != nil {
		d.observer.TaskDropped(kind)
	}
}
