package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the queue between sign-in operations and the sink.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull trades completeness for latency: a sign-in never waits on a
	// slow sink, and the lost event is counted in Dropped.
	DropIfFull bool
}

// Dispatcher moves the engine's authentication events (register_success /
// register_failure, login_success / login_failure, federated_login,
// account_linked, refresh_success / refresh_invalid, logout and
// refresh_purge) from the request path to the configured sink on one
// goroutine, so a sink sees events in emit order. A nil *Dispatcher discards everything; the engine gets one
// when auditing is disabled.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	stop      chan struct{}
	stopOnce  sync.Once
	stopped   atomic.Bool
	worker    sync.WaitGroup
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing
// is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		dropIfFull: cfg.DropIfFull,
		stop:       make(chan struct{}),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever was queued before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues one event. Without DropIfFull it waits for room until ctx is
// done, and a cancelled wait counts as a drop. Emit after Close does nothing.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- event:
	case <-cancelled:
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops intake and returns once queued events reached the sink. The
// engine calls it from Engine.Close.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped reports events lost to a full queue or a cancelled context. It is
// exported as gofedauth_audit_dropped_total.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
