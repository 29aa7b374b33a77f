package jobs

import (
	"context"
	"log"
)

// Notification is a best-effort event destined for watcher instances.
// Broadcast events have no recipient list and go to every connected client.
type Notification struct {
	Event        string
	ResourceType string
	ResourceID   int64
	Recipients   []int64
	Data         map[string]interface{}
	Broadcast    bool
}

// Sink delivers notifications to their recipients. Delivery failures are the
// sink's problem; the dispatcher logs and moves on.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the process log. It stands in when no
// real-time delivery channel is configured.
type LogSink struct{}

// Deliver logs the notification.
func (LogSink) Deliver(ctx context.Context, n Notification) error {
	log.Printf("notification: event=%s resource=%s/%d recipients=%d broadcast=%v",
		n.Event, n.ResourceType, n.ResourceID, len(n.Recipients), n.Broadcast)
	return nil
}

// Dispatcher consumes queued notifications on a background goroutine so
// request handlers never block on delivery. The queue is bounded; when it is
// full, Enqueue drops the notification rather than stalling the caller.
type Dispatcher struct {
	sink     Sink
	queue    chan Notification
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewDispatcher creates a Dispatcher with the given queue capacity.
func NewDispatcher(sink Sink, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sink:     sink,
		queue:    make(chan Notification, queueSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Enqueue hands a notification to the dispatcher without blocking. It
// returns false when the queue is full and the notification was dropped.
func (d *Dispatcher) Enqueue(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		log.Printf("notification queue full, dropping event %s for %s/%d", n.Event, n.ResourceType, n.ResourceID)
		return false
	}
}

// Start begins the consume loop. It drains remaining queued notifications
// on stop before signalling completion.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.doneChan)

	log.Printf("notification dispatcher started (queue capacity %d)", cap(d.queue))

	for {
		select {
		case <-ctx.Done():
			log.Println("notification dispatcher stopped: context cancelled")
			return
		case <-d.stopChan:
			d.drain(ctx)
			log.Println("notification dispatcher stopped: stop signal received")
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

// Stop gracefully stops the dispatcher and waits for the loop to exit.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.doneChan
	log.Println("notification dispatcher shutdown complete")
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	if err := d.sink.Deliver(ctx, n); err != nil {
		log.Printf("notification delivery failed for event %s: %v", n.Event, err)
	}
}
