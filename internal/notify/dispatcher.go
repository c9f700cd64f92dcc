package notify

import (
	"context"
	"sync"
	"time"

	"tripwise_backend/internal/logger"
)

// Dispatcher queues events and delivers each one to every registered
// notifier from a fixed worker pool. Submit never blocks the caller: when
// the queue is full the event is dropped and logged, since collaborator
// updates are advisory.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan Event
	timeout   time.Duration

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func NewDispatcher(queueSize int, notifiers ...Notifier) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan Event, queueSize),
		timeout:   15 * time.Second,
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (d *Dispatcher) Start(workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Submit enqueues an event without blocking. It reports whether the event
// was accepted.
func (d *Dispatcher) Submit(event Event) bool {
	select {
	case d.queue <- event:
		return true
	default:
		logger.Warn("notify queue full, dropping event",
			"user_id", event.UserID,
			"destination", event.Destination,
		)
		return false
	}
}

// Len reports the number of queued, undelivered events.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Stop closes the queue and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.queue)
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

// deliver pushes one event to every notifier. A panic in one notifier must
// not take the worker down.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panic recovered", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, n := range d.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			logger.Warn("notify delivery failed",
				"notifier", n.Name(),
				"user_id", event.UserID,
				"error", err.Error(),
			)
		}
	}
}
