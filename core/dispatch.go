package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher errors
var (
	ErrDispatcherClosed = errors.New("dispatcher is shutting down")
	ErrQueueFull        = errors.New("task queue is full")
	ErrTaskPanicked     = errors.New("task panicked")
)

// Task is a unit of background work.
type Task interface {
	Execute(ctx context.Context) error
	Name() string
}

// TaskSubmitter accepts background tasks.
type TaskSubmitter interface {
	Submit(task Task) error
}

// Dispatcher runs submitted tasks on a fixed set of worker goroutines and
// logs the outcome of each one.
type Dispatcher struct {
	workers int
	queue   chan Task
	log     logrus.FieldLogger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(workers, queueSize int, log logrus.FieldLogger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		workers: workers,
		queue:   make(chan Task, queueSize),
		log:     log.WithField("component", "dispatcher"),
	}
}

// Start launches the workers. They exit when ctx is done or the dispatcher is shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Submit queues a task without blocking.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, task.Name())
	}
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Stats returns the number of processed and failed tasks.
func (d *Dispatcher) Stats() (processed, failed int64) {
	return d.processed.Load(), d.failed.Load()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-d.queue:
			if !ok {
				return
			}
			d.run(ctx, task)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		err = task.Execute(ctx)
	}()

	entry := d.log.WithFields(logrus.Fields{
		"task":        task.Name(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	d.processed.Add(1)
	if err != nil {
		d.failed.Add(1)
		entry.WithError(err).Error("task failed")
		return
	}
	entry.Info("task completed")
}

// InlineSubmitter runs tasks synchronously on Submit. The CLI uses it where
// no dispatcher is running.
type InlineSubmitter struct {
	Ctx context.Context
}

// Submit runs the task and returns its error.
func (s InlineSubmitter) Submit(task Task) error {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return task.Execute(ctx)
}
