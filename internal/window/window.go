// Package window implements event-time tumbling windows and their
// triggers (C6): window assignment, watermark tracking, the
// @element/@windowEnd/@windowNext trigger rules and their tie-break
// emission order, and the window lifecycle state machine.
package window

import (
	"sort"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/train"
)

// State is a window's lifecycle stage per spec.md §4.4.
type State int

const (
	StateOpen State = iota
	StateTriggered
	StateDrained
	StateClosed
	StateLate
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "Open"
	case StateTriggered:
		return "Triggered"
	case StateDrained:
		return "Drained"
	case StateClosed:
		return "Closed"
	case StateLate:
		return "Late"
	default:
		return "Unknown"
	}
}

// Trigger names which trigger caused an emission.
type Trigger int

const (
	TriggerElement Trigger = iota
	TriggerWindowEnd
	TriggerWindowNext
	TriggerLateness
)

func (t Trigger) String() string {
	switch t {
	case TriggerElement:
		return "@element"
	case TriggerWindowEnd:
		return "@windowEnd"
	case TriggerWindowNext:
		return "@windowNext"
	case TriggerLateness:
		return "Lateness"
	default:
		return "unknown"
	}
}

// Window holds trains assigned to one fixed-size bucket [Start, End).
type Window struct {
	Start, End int64 // milliseconds, tumbling bucket boundaries
	State      State
	trains     []*train.Train
}

// Trains returns the trains accumulated in this window, in insertion order.
func (w *Window) Trains() []*train.Train { return w.trains }

// Firing describes one trigger decision produced by Insert, in the order
// the caller should process them (station runtime feeds each Firing to
// the transform stage in this order).
type Firing struct {
	Window  *Window
	Trigger Trigger
	Close   bool // true if the window should transition to Closed after this firing
}

// Set owns all windows for one station, keyed by bucket start, plus the
// watermark and trigger configuration driving them.
type Set struct {
	sizeMs          int64
	allowedLateness int64
	triggers        map[string]bool

	windows   map[int64]*Window
	watermark int64 // max event_ts seen - allowedLateness

	lateDiscardCount int64
}

// NewSet builds a window Set from a station's WindowSpec/TriggerSpec.
func NewSet(ws *plan.WindowSpec, ts *plan.TriggerSpec) *Set {
	s := &Set{
		windows:  make(map[int64]*Window),
		triggers: make(map[string]bool),
	}
	if ws != nil {
		s.sizeMs = int64(ws.SizeSeconds) * 1000
		s.allowedLateness = int64(ws.AllowedLateness) * 1000
	}
	if s.sizeMs <= 0 {
		s.sizeMs = 1000
	}
	if ts != nil {
		for _, n := range ts.Names {
			s.triggers[n] = true
		}
	}
	if len(s.triggers) == 0 {
		s.triggers[TriggerElement.String()] = true
	}
	return s
}

// bucketStart floors eventMs to the window size.
func (s *Set) bucketStart(eventMs int64) int64 {
	if eventMs < 0 {
		// floor division toward -inf for negative timestamps.
		q := eventMs / s.sizeMs
		if eventMs%s.sizeMs != 0 {
			q--
		}
		return q * s.sizeMs
	}
	return (eventMs / s.sizeMs) * s.sizeMs
}

// LateDiscardCount reports how many late trains were dropped outright
// (spec.md's LateDiscard metric).
func (s *Set) LateDiscardCount() int64 { return s.lateDiscardCount }

// Watermark returns the current watermark in epoch milliseconds.
func (s *Set) Watermark() int64 { return s.watermark }

// Insert assigns t to its window (creating it if necessary, re-opening a
// Closed window as Late if the lateness bound allows), advances the
// watermark, and returns the Firings this arrival produces, in the
// tie-break order required by spec.md §4.5: @element first, then
// @windowEnd closures in ascending window end, then @windowNext.
func (s *Set) Insert(t *train.Train) []Firing {
	eventMs := t.EventTS.Ms
	start := s.bucketStart(eventMs)
	end := start + s.sizeMs

	w, exists := s.windows[start]
	if !exists {
		if end <= s.watermark {
			// window would already be closed; treat as late arrival.
			if eventMs < end-s.allowedLateness {
				s.lateDiscardCount++
				return nil
			}
			w = &Window{Start: start, End: end, State: StateLate}
		} else {
			w = &Window{Start: start, End: end, State: StateOpen}
		}
		s.windows[start] = w
	} else if w.State == StateClosed {
		if eventMs < end-s.allowedLateness {
			s.lateDiscardCount++
			return nil
		}
		w.State = StateLate
	}
	w.trains = append(w.trains, t)

	if eventMs > s.watermark+s.allowedLateness {
		s.watermark = eventMs - s.allowedLateness
	}

	var firings []Firing

	if s.triggers[TriggerElement.String()] {
		firings = append(firings, Firing{Window: w, Trigger: TriggerElement})
	}
	if w.State == StateLate {
		firings = append(firings, Firing{Window: w, Trigger: TriggerLateness})
	}

	// @windowEnd: any window whose end has now been crossed by the watermark.
	if s.triggers[TriggerWindowEnd.String()] {
		var closing []*Window
		for _, cw := range s.windows {
			if cw.State != StateClosed && cw.End <= s.watermark {
				closing = append(closing, cw)
			}
		}
		sort.Slice(closing, func(i, j int) bool { return closing[i].End < closing[j].End })
		for _, cw := range closing {
			firings = append(firings, Firing{Window: cw, Trigger: TriggerWindowEnd, Close: true})
		}
	}

	// @windowNext: the arrival starts a new bucket relative to any
	// still-open predecessor window.
	if s.triggers[TriggerWindowNext.String()] {
		for bs, ow := range s.windows {
			if bs < start && ow.State != StateClosed {
				firings = append(firings, Firing{Window: ow, Trigger: TriggerWindowNext})
			}
		}
	}

	return firings
}

// MarkState transitions w to the given state. Station runtime calls this
// after processing a Firing (e.g. Triggered -> Drained -> Closed).
func MarkState(w *Window, st State) { w.State = st }

// Windows returns every window currently tracked, ordered by bucket start.
func (s *Set) Windows() []*Window {
	starts := make([]int64, 0, len(s.windows))
	for k := range s.windows {
		starts = append(starts, k)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	out := make([]*Window, len(starts))
	for i, k := range starts {
		out[i] = s.windows[k]
	}
	return out
}
