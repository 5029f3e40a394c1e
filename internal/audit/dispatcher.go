package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// Logger reports sink panics. Nil uses slog.Default.
	Logger *slog.Logger
}

// Stats counts what happened to the session events handed to a Dispatcher.
type Stats struct {
	Delivered    uint64
	Dropped      uint64
	SinkFailures uint64
}

// Dispatcher hands session events to a sink on its own goroutine so login,
// refresh and logout never wait on audit I/O. A nil *Dispatcher is valid and
// ignores every event.
type Dispatcher struct {
	sink       Sink
	logger     *slog.Logger
	dropIfFull bool

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	delivered    atomic.Uint64
	dropped      atomic.Uint64
	sinkFailures atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
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

// drain delivers what was queued before Close.
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
	defer func() {
		if r := recover(); r != nil {
			d.sinkFailures.Add(1)
			d.logger.Warn("goAuthClient: audit sink panicked",
				"event_type", event.EventType,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event and reports whether it was accepted. With DropIfFull a
// full buffer drops the event; otherwise Emit waits for room until ctx ends
// or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
			return true
		case <-d.stop:
			return false
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.queue <- event:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.stop:
		return false
	}
}

// Close stops accepting events, delivers the queued ones and waits for the
// worker to exit. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Stats returns the dispatcher's counters. A nil dispatcher reports zeros.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered:    d.delivered.Load(),
		Dropped:      d.dropped.Load(),
		SinkFailures: d.sinkFailures.Load(),
	}
}

// Dropped is Stats().Dropped.
func (d *Dispatcher) Dropped() uint64 {
	return d.Stats().Dropped
}
