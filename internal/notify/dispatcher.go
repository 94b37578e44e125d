package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher runs post-commit side effects on a fixed worker pool over a
// bounded queue. Go never blocks the caller: when the queue is full the task
// is dropped and logged. Failures are logged, never returned to the bidder.
type Dispatcher struct {
	tasks   chan task
	wg      sync.WaitGroup
	timeout time.Duration

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewDispatcher starts workers goroutines draining a queue of size queueSize.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		tasks:   make(chan task, queueSize),
		timeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := t.fn(ctx); err != nil {
			log.Warn().Err(err).Str("task", t.name).Msg("Notification task failed")
		}
		cancel()
	}
}

// Go enqueues fn for asynchronous execution. After Close the task is dropped
// and logged, same as a full queue.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("task", name).Msg("Dispatcher closed, task dropped")
		return
	}
	select {
	case d.tasks <- task{name: name, fn: fn}:
	default:
		log.Warn().Str("task", name).Msg("Notification queue full, task dropped")
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.tasks)
	})
	d.wg.Wait()
}
