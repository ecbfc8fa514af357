// Package station implements the per-station runtime (C5): the
// receive -> layout -> window -> trigger -> transform -> emit pipeline
// that runs once per arriving train, plus dead-letter isolation of
// station-local failures.
package station

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/queue"
	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/transform"
	"github.com/data-tracks/DataTracks/internal/window"
)

// EventSink receives station-local failure/lifecycle events for the
// telemetry bus's events topic (C10). Kept as a narrow interface so
// station has no import on the concrete telemetry wiring.
type EventSink interface {
	PublishEvent(kind string, fields map[string]interface{})
}

// WALWriter commits a train to the write-ahead log, the boundary between
// the station pipeline and the engine persister pool (spec.md §2's
// dataflow: "... -> WAL -> Persister -> Engine"). internal/wal.WAL
// satisfies this directly.
type WALWriter interface {
	Append(stationID uint32, ts int64, payload []byte) (uint64, error)
}

// Runtime is the live, running form of a validated plan.Station: its
// window set, compiled transform, and wiring into the line fabric.
type Runtime struct {
	station    *plan.Station
	fabric     *queue.Fabric
	dispatcher *transform.Dispatcher
	events     EventSink
	wal        WALWriter

	windows *window.Set

	deadLetterCount int64
}

// NewRuntime builds a Runtime for st, wired to fabric for line I/O.
func NewRuntime(st *plan.Station, fabric *queue.Fabric, dispatcher *transform.Dispatcher, events EventSink) *Runtime {
	return &Runtime{
		station:    st,
		fabric:     fabric,
		dispatcher: dispatcher,
		events:     events,
		windows:    window.NewSet(st.Window, st.Trigger),
	}
}

// SetWAL attaches the write-ahead log a terminal station (one with no
// outgoing lines) commits its output to. Stations that feed other
// stations never call it: the plan's lines alone carry trains between
// them, and only the end of a chain is durable.
func (r *Runtime) SetWAL(w WALWriter) {
	r.wal = w
}

// DeadLetterCount reports how many trains were routed to dead-letter (or
// logged-and-counted where no dead-letter line was configured).
func (r *Runtime) DeadLetterCount() int64 { return atomic.LoadInt64(&r.deadLetterCount) }

type arrival struct {
	lineID uint32
	t      *train.Train
}

// Run starts the station's background goroutines: one reader per incoming
// line, fanning into a single processing loop so arrivals are handled
// strictly FIFO at the aggregation point. Run returns immediately; wg is
// marked Done once the station has fully drained and exited, mirroring the
// teacher's per-concern goroutine + WaitGroup shutdown shape.
func (r *Runtime) Run(ctx context.Context, wg *sync.WaitGroup) {
	incoming := r.station.Incoming()
	if len(incoming) == 0 {
		// pure ingress station with no upstream lines: nothing to pump here,
		// internal/ingress drivers push directly onto its outgoing lines.
		return
	}

	arrivals := make(chan arrival, 64)
	var readers sync.WaitGroup
	for _, lineID := range incoming {
		l, ok := r.fabric.Get(lineID)
		if !ok {
			continue
		}
		readers.Add(1)
		go func(l *queue.Line) {
			defer readers.Done()
			for {
				t, ok, err := l.Receive(ctx)
				if err != nil || !ok {
					return
				}
				select {
				case arrivals <- arrival{lineID: l.ID(), t: t}:
				case <-ctx.Done():
					return
				}
			}
		}(l)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		go func() {
			readers.Wait()
			close(arrivals)
		}()
		for {
			select {
			case a, ok := <-arrivals:
				if !ok {
					return
				}
				r.process(ctx, a)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// process runs the layout -> window -> trigger -> transform -> emit
// pipeline for one arrived train.
func (r *Runtime) process(ctx context.Context, a arrival) {
	t := a.t

	if len(r.station.Layout) > 0 {
		wagons := make([]train.Wagon, 0, t.Len())
		for _, w := range t.Wagons() {
			cw, err := checkLayout(r.station.ID, r.station.Layout, w)
			if err != nil {
				r.deadLetter(ctx, train.New(t.EventTS, t.OriginLine, []train.Wagon{w}), err)
				continue
			}
			wagons = append(wagons, cw)
		}
		if len(wagons) == 0 {
			return
		}
		t = train.New(t.EventTS, t.OriginLine, wagons)
	}

	if r.station.Window == nil {
		r.runTransformAndEmit(ctx, []*train.Train{t})
		return
	}

	firings := r.windows.Insert(t)
	for _, f := range firings {
		switch f.Trigger {
		case window.TriggerElement:
			window.MarkState(f.Window, windowStateAfterElement(f.Window))
		default:
			window.MarkState(f.Window, windowStateTriggered)
		}
		r.runTransformAndEmit(ctx, f.Window.Trains())
		if f.Close {
			window.MarkState(f.Window, windowStateClosed)
		} else {
			window.MarkState(f.Window, windowStateDrained)
		}
	}
}

const (
	windowStateTriggered = window.StateTriggered
	windowStateClosed    = window.StateClosed
	windowStateDrained   = window.StateDrained
)

func windowStateAfterElement(w *window.Window) window.State {
	if w.State == window.StateOpen {
		return window.StateTriggered
	}
	return w.State
}

func (r *Runtime) runTransformAndEmit(ctx context.Context, inputs []*train.Train) {
	if len(inputs) == 0 {
		return
	}
	outputs := inputs
	if r.station.Transform != nil {
		res, err := r.dispatcher.Run(r.station.ID, r.station.Transform.Language, r.station.Transform.Query, inputs)
		if err != nil {
			for _, in := range inputs {
				r.deadLetter(ctx, in, err)
			}
			return
		}
		outputs = res
	}
	for _, out := range outputs {
		r.emit(ctx, out)
	}
}

// emit pushes out onto every outgoing line in ascending line-id order,
// blocking (propagating backpressure) when a downstream queue is full. A
// station with no outgoing lines is the end of its chain: its output
// commits to the WAL instead, where the engine persister pool picks it up.
func (r *Runtime) emit(ctx context.Context, out *train.Train) {
	outgoing := r.station.Outgoing()
	if len(outgoing) == 0 {
		r.commit(out)
		return
	}
	for _, lineID := range outgoing {
		l, ok := r.fabric.Get(lineID)
		if !ok {
			continue
		}
		if err := l.Send(ctx, out); err != nil {
			r.publishEvent("backpressure_timeout", map[string]interface{}{"station_id": r.station.ID, "line_id": lineID})
			return
		}
	}
}

// commit appends out to the WAL under this station's id. Stations wired
// without a WAL (e.g. ones whose output is consumed purely over an egress
// binding) silently drop a terminal train, matching spec.md §4.4's rule
// that routing decisions are fixed by plan topology alone.
func (r *Runtime) commit(out *train.Train) {
	if r.wal == nil {
		return
	}
	if _, err := r.wal.Append(r.station.ID, out.EventTS.Ms, train.Encode(out)); err != nil {
		r.publishEvent("wal_io_error", map[string]interface{}{"station_id": r.station.ID, "reason": err.Error()})
	}
}

// deadLetter routes a failed train to the station's configured dead-letter
// line, or logs-and-counts it if none is configured, per spec.md §4.4's
// failure isolation policy.
func (r *Runtime) deadLetter(ctx context.Context, t *train.Train, cause error) {
	atomic.AddInt64(&r.deadLetterCount, 1)
	r.publishEvent("dead_letter", map[string]interface{}{
		"station_id": r.station.ID,
		"reason":     cause.Error(),
	})
	if r.station.DeadLetter == nil {
		return
	}
	if l, ok := r.fabric.Get(*r.station.DeadLetter); ok {
		_ = l.Send(ctx, t)
	}
}

func (r *Runtime) publishEvent(kind string, fields map[string]interface{}) {
	if r.events == nil {
		return
	}
	r.events.PublishEvent(kind, fields)
}
