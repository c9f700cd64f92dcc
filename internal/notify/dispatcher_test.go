package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Name() string { return "recorder" }

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type panickingNotifier struct{}

func (panickingNotifier) Name() string                        { return "panicker" }
func (panickingNotifier) Notify(context.Context, Event) error { panic("boom") }

func TestDispatcher_DeliversToAllWorkers(t *testing.T) {
	t.Parallel()

	recorder := &recordingNotifier{}
	d := NewDispatcher(16, recorder)
	d.Start(2)

	for i := 0; i < 5; i++ {
		assert.True(t, d.Submit(Event{UserID: "u", Destination: "Oslo"}))
	}
	d.Stop()

	assert.Equal(t, 5, recorder.count())
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	t.Parallel()

	// No workers running: the queue fills and overflow is dropped.
	d := NewDispatcher(2, &recordingNotifier{})

	assert.True(t, d.Submit(Event{UserID: "a"}))
	assert.True(t, d.Submit(Event{UserID: "b"}))

	done := make(chan bool, 1)
	go func() {
		done <- d.Submit(Event{UserID: "c"})
	}()

	select {
	case accepted := <-done:
		assert.False(t, accepted, "overflow must be dropped, not queued")
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	assert.Equal(t, 2, d.Len())
}

func TestDispatcher_SurvivesNotifierPanic(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(8, panickingNotifier{})
	d.Start(1)

	d.Submit(Event{UserID: "a"})
	d.Submit(Event{UserID: "b"})
	d.Stop()

	// Stop returning at all means the worker outlived both panics.
	assert.Equal(t, 0, d.Len())
}

func TestDispatcher_StopIdempotent(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(4, &recordingNotifier{})
	d.Start(1)
	d.Stop()
	d.Stop()
}
