package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking.
	DropIfFull bool
	// KeepFailures exempts failed events (denials, rejected mutations) from
	// DropIfFull: they wait for room like a blocking dispatcher would.
	KeepFailures bool
}

// Dispatcher forwards events to a sink from a single background goroutine.
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	queue    chan Event
	shutdown chan struct{}
	worker   sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool

	dropped         atomic.Uint64
	droppedFailures atomic.Uint64
	delivered       atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		queue:    make(chan Event, max(cfg.BufferSize, 1)),
		shutdown: make(chan struct{}),
	}
	d.worker.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.worker.Done()
	for {
		select {
		case ev := <-d.queue:
			d.forward(ev)
		case <-d.shutdown:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.forward(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) forward(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// droppable reports whether ev may be discarded when the buffer is full.
func (d *Dispatcher) droppable(ev Event) bool {
	if !d.cfg.DropIfFull {
		return false
	}
	return ev.Success || !d.cfg.KeepFailures
}

// Emit queues ev. A droppable event meeting a full buffer is counted and
// discarded; any other event waits until there is room, ctx ends or the
// dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopped.Load() {
		return
	}

	if d.droppable(ev) {
		select {
		case d.queue <- ev:
		case <-d.shutdown:
		default:
			d.dropped.Add(1)
			if !ev.Success {
				d.droppedFailures.Add(1)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.shutdown:
	}
}

// Close stops accepting events, flushes the queue and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.shutdown)
		d.worker.Wait()
	})
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedFailures returns how many of the dropped events recorded a denial
// or a rejected mutation. It stays zero while KeepFailures is set.
func (d *Dispatcher) DroppedFailures() uint64 {
	if d == nil {
		return 0
	}
	return d.droppedFailures.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
