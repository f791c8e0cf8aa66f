// Package workerpool bounds how many units of work run at once. Callers submit
// work and receive a Future; a fixed number of worker goroutines take pending
// tasks off a shared list and settle each task's Future exactly once.
//
// Every task carries a deadline armed at submission. When it expires the task
// is dropped from the pending list if no worker has taken it yet, its context
// is cancelled so in-flight calls stop, and the waiter receives a
// *TimeoutError.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Order selects which pending task an idle worker takes next.
type Order string

const (
	// OrderLIFO takes the most recently submitted task first. Under sustained
	// load older submissions can starve until they time out.
	OrderLIFO Order = "lifo"
	// OrderFIFO takes the oldest pending task first.
	OrderFIFO Order = "fifo"
)

// ParseOrder maps a config string to an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case OrderLIFO, OrderFIFO:
		return Order(s), nil
	case "":
		return OrderLIFO, nil
	default:
		return "", fmt.Errorf("unknown dequeue order %q (want lifo or fifo)", s)
	}
}

const (
	defaultWorkers      = 2
	defaultTimeout      = 200 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

// Config controls pool sizing and task deadlines. Zero values take defaults.
type Config struct {
	Workers      int
	Timeout      time.Duration
	PollInterval time.Duration
	Order        Order
}

// DefaultConfig returns two workers, a 200s task timeout, a 10ms idle poll and
// LIFO dequeue.
func DefaultConfig() Config {
	return Config{
		Workers:      defaultWorkers,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
		Order:        OrderLIFO,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Order == "" {
		c.Order = d.Order
	}
	return c
}

// Work is a unit of work. ctx is cancelled when the task times out, its
// waiter abandons it, or the pool stops.
type Work[T any] func(ctx context.Context) (T, error)

type task[T any] struct {
	id         string
	enqueuedAt time.Time
	work       Work[T]
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	disarmed bool
}

// arm starts the deadline unless the task has already settled.
func (t *task[T]) arm(d time.Duration, expire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.disarmed {
		t.timer = time.AfterFunc(d, expire)
	}
}

func (t *task[T]) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmed = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Pool is a fixed-size set of workers draining a shared pending list.
type Pool[T any] struct {
	cfg      Config
	log      *slog.Logger
	queue    *queue[T]
	registry *registry[T]
	metrics  *poolMetrics
	wake     chan struct{}

	// halt is cancelled by Stop and reaches every task context.
	halt    context.Context
	haltAll context.CancelFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// New creates a pool. Workers do not run until Start is called; tasks
// submitted before then wait in the pending list.
func New[T any](cfg Config, log *slog.Logger) *Pool[T] {
	cfg = cfg.withDefaults()
	p := &Pool[T]{
		cfg:      cfg,
		log:      log,
		queue:    newQueue[T](cfg.Order),
		registry: newRegistry[T](),
		wake:     make(chan struct{}, cfg.Workers),
	}
	p.halt, p.haltAll = context.WithCancel(context.Background())
	p.metrics = newPoolMetrics(p.queue.len)
	return p
}

// Config returns the effective configuration.
func (p *Pool[T]) Config() Config { return p.cfg }

// Start launches the workers. They run until ctx is cancelled or Stop is
// called. Calling Start more than once has no effect.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.stopped {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := range p.cfg.Workers {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("worker pool started", "workers", p.cfg.Workers, "order", string(p.cfg.Order), "timeout", p.cfg.Timeout)
}

// Stop cancels the context of every running task, halts the workers, waits
// for running tasks to return and fails every task still pending with
// ErrStopped.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	p.haltAll()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	var zero T
	for _, t := range p.queue.drain() {
		if p.finish(t, zero, ErrStopped, outcomeStopped) {
			t.disarm()
		}
	}
	p.log.Info("worker pool stopped")
}

// Submit enqueues work under a fresh correlation id and returns its Future.
// Values carried by ctx (trace spans, loggers) reach the work; its
// cancellation does not. Use Future.Wait with a context to abandon a task.
func (p *Pool[T]) Submit(ctx context.Context, work Work[T]) (*Future[T], error) {
	if work == nil {
		return nil, errors.New("submit: nil work")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil, ErrStopped
	}

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	release := context.AfterFunc(p.halt, cancel)
	t := &task[T]{
		id:         uuid.NewString(),
		enqueuedAt: time.Now(),
		work:       work,
		ctx:        taskCtx,
		cancel: func() {
			release()
			cancel()
		},
	}
	f := &Future[T]{id: t.id, done: make(chan struct{})}
	f.abandon = func(cause error) { p.abandon(t, cause) }

	// The task is pending before its deadline can fire, so expire always
	// finds it either in the pending list or with a worker.
	p.registry.register(f)
	p.queue.push(t)
	t.arm(p.cfg.Timeout, func() { p.expire(t) })
	p.metrics.submitted(ctx)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	p.log.Debug("task submitted", "taskId", t.id, "pending", p.queue.len())
	return f, nil
}

// Do submits work and waits for its outcome.
func (p *Pool[T]) Do(ctx context.Context, work Work[T]) (T, error) {
	f, err := p.Submit(ctx, work)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Wait(ctx)
}

// Pending returns the number of tasks waiting for a worker.
func (p *Pool[T]) Pending() int { return p.queue.len() }

// InFlight returns the number of tasks whose outcome has not been delivered.
func (p *Pool[T]) InFlight() int { return p.registry.len() }

func (p *Pool[T]) worker(ctx context.Context, n int) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if t, ok := p.queue.pop(); ok {
			p.execute(t, n)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

func (p *Pool[T]) execute(t *task[T], n int) {
	start := time.Now()
	p.metrics.waited(t.ctx, start.Sub(t.enqueuedAt))

	v, err := p.run(t)

	outcome := outcomeSucceeded
	switch {
	case err != nil && p.halt.Err() != nil:
		err = fmt.Errorf("task %s interrupted: %w", t.id, ErrStopped)
		outcome = outcomeStopped
	case err != nil:
		outcome = outcomeFailed
		p.log.Warn("task failed", "taskId", t.id, "worker", n, "error", err)
	}
	if p.finish(t, v, err, outcome) {
		t.disarm()
	}
	p.metrics.ran(t.ctx, time.Since(start), outcome)
}

func (p *Pool[T]) run(t *task[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{TaskID: t.id, Value: r}
		}
	}()
	return t.work(t.ctx)
}

// expire runs on the task's timer.
func (p *Pool[T]) expire(t *task[T]) {
	queued := p.queue.remove(t.id)
	var zero T
	p.finish(t, zero, &TimeoutError{TaskID: t.id, After: p.cfg.Timeout, Queued: queued}, outcomeTimeout)
}

func (p *Pool[T]) abandon(t *task[T], cause error) {
	p.queue.remove(t.id)
	var zero T
	if p.finish(t, zero, fmt.Errorf("task %s abandoned: %w", t.id, cause), outcomeAbandoned) {
		t.disarm()
	}
}

// finish delivers the task's outcome if no other outcome has been delivered
// yet, and cancels the task context either way.
func (p *Pool[T]) finish(t *task[T], v T, err error, outcome string) bool {
	defer t.cancel()
	if !p.registry.settle(t.id, v, err) {
		p.log.Debug("dropping late task outcome", "taskId", t.id, "outcome", outcome)
		return false
	}
	p.metrics.completed(t.ctx, outcome)
	if outcome == outcomeTimeout {
		p.log.Warn("task timed out", "taskId", t.id, "after", p.cfg.Timeout)
	}
	return true
}
