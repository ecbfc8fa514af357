// Package queue implements the Line fabric (C3): bounded, typed channels
// connecting stations, with depth sampling for the telemetry bus.
package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/data-tracks/DataTracks/internal/train"
)

// DepthObserver receives queue-depth samples. Implemented by
// internal/telemetry; kept as an interface here so queue has no import on
// telemetry (C3 must not depend on C10's concrete wiring).
type DepthObserver interface {
	ObserveQueueDepth(lineID uint32, depth, capacity int)
}

// TrainObserver receives a non-blocking tap of every train that passes
// through a Line, used by the dashboard's `/channel/{topic}` websocket
// stream. Implementations must not block: Send calls the observer
// synchronously after a successful enqueue.
type TrainObserver interface {
	ObserveTrain(lineID uint32, t *train.Train)
}

// Line is a fixed-capacity, FIFO bounded queue between two stations. A
// single Line may have multiple senders but spec.md requires per-line FIFO,
// so Line itself does not reorder: Go channels already preserve send order
// per-sender, and callers needing strict ordering across senders must
// serialize sends themselves (station runtime does this, see internal/station).
type Line struct {
	id       uint32
	from, to uint32
	capacity int
	ch       chan *train.Train
	depth    int64 // atomic, approximate for sampling only
	observer TrainObserver
}

// SetObserver registers a TrainObserver tapped on every successful Send.
// Not safe to call concurrently with Send; set once before the station
// runtime starts.
func (l *Line) SetObserver(obs TrainObserver) { l.observer = obs }

// New builds a Line with the given id, endpoints and bounded capacity.
func New(id, from, to uint32, capacity int) *Line {
	if capacity <= 0 {
		capacity = 1
	}
	return &Line{id: id, from: from, to: to, capacity: capacity, ch: make(chan *train.Train, capacity)}
}

func (l *Line) ID() uint32      { return l.id }
func (l *Line) From() uint32    { return l.from }
func (l *Line) To() uint32      { return l.to }
func (l *Line) Capacity() int   { return l.capacity }
func (l *Line) Depth() int      { return int(atomic.LoadInt64(&l.depth)) }

// ErrBackpressureTimeout is returned by Send when ctx is cancelled while
// waiting for queue space, per spec.md's BackpressureTimeout (shutdown only).
type ErrBackpressureTimeout struct {
	LineID uint32
}

func (e *ErrBackpressureTimeout) Error() string {
	return fmt.Sprintf("queue: backpressure timeout on line %d", e.LineID)
}

// Send blocks until there is room on the line or ctx is cancelled. A full
// downstream queue propagates backpressure upstream by blocking the caller,
// exactly as spec.md §4.4's emit step requires.
func (l *Line) Send(ctx context.Context, t *train.Train) error {
	select {
	case l.ch <- t:
		atomic.AddInt64(&l.depth, 1)
		l.tap(t)
		return nil
	default:
	}
	select {
	case l.ch <- t:
		atomic.AddInt64(&l.depth, 1)
		l.tap(t)
		return nil
	case <-ctx.Done():
		return &ErrBackpressureTimeout{LineID: l.id}
	}
}

func (l *Line) tap(t *train.Train) {
	if l.observer != nil {
		l.observer.ObserveTrain(l.id, t)
	}
}

// Receive blocks until a train is available, ctx is cancelled, or the line
// is closed (ok=false on close with an empty buffer).
func (l *Line) Receive(ctx context.Context) (*train.Train, bool, error) {
	select {
	case t, ok := <-l.ch:
		if !ok {
			return nil, false, nil
		}
		atomic.AddInt64(&l.depth, -1)
		return t, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close closes the line's underlying channel. Senders must not call Send
// after Close; Receive continues to drain buffered trains until empty.
func (l *Line) Close() { close(l.ch) }

// Sample reports the current depth to obs. Intended to be invoked
// periodically by the telemetry publisher task (C10) for every live Line.
func (l *Line) Sample(obs DepthObserver) {
	if obs == nil {
		return
	}
	obs.ObserveQueueDepth(l.id, l.Depth(), l.capacity)
}

// Fabric owns the set of Lines belonging to one Plan, indexed by id.
type Fabric struct {
	lines map[uint32]*Line
}

// NewFabric builds an empty Fabric.
func NewFabric() *Fabric {
	return &Fabric{lines: make(map[uint32]*Line)}
}

// Add registers a Line under its id. Add panics on a duplicate id since
// that indicates a Plan validation bug upstream (ids must already be
// unique by the time the fabric is built).
func (f *Fabric) Add(l *Line) {
	if _, exists := f.lines[l.id]; exists {
		panic(fmt.Sprintf("queue: duplicate line id %d", l.id))
	}
	f.lines[l.id] = l
}

// Get returns the Line for id, if registered.
func (f *Fabric) Get(id uint32) (*Line, bool) {
	l, ok := f.lines[id]
	return l, ok
}

// All returns every Line in the fabric, in ascending id order.
func (f *Fabric) All() []*Line {
	out := make([]*Line, 0, len(f.lines))
	for _, l := range f.lines {
		out = append(out, l)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].id > out[j].id; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// CloseAll closes every line in the fabric. Called on shutdown after
// ingress has stopped producing, per spec.md §5 cancellation semantics.
func (f *Fabric) CloseAll() {
	for _, l := range f.lines {
		l.Close()
	}
}
