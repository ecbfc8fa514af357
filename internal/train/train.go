// Package train implements the Train/Wagon container (C2): an immutable,
// cheaply-shareable batch of rows carried between stations.
package train

import (
	"fmt"

	"github.com/data-tracks/DataTracks/internal/value"
)

// Wagon is a single row: an ordered map from upstream line id to the Value
// that arrived on that line. Position in Fields corresponds to the line
// numbers transforms reference as $N (1-indexed).
type Wagon struct {
	fields  []value.Value
	lineIDs []uint32
}

// NewWagon builds a Wagon from parallel lineID/value slices. Both slices
// must be the same length.
func NewWagon(lineIDs []uint32, values []value.Value) Wagon {
	w := Wagon{
		lineIDs: make([]uint32, len(lineIDs)),
		fields:  make([]value.Value, len(values)),
	}
	copy(w.lineIDs, lineIDs)
	copy(w.fields, values)
	return w
}

// Len returns the number of fields in the wagon.
func (w Wagon) Len() int { return len(w.fields) }

// At returns the value at position i (0-indexed), matching $N for N=i+1.
func (w Wagon) At(i int) (value.Value, bool) {
	if i < 0 || i >= len(w.fields) {
		return value.Value{}, false
	}
	return w.fields[i], true
}

// ByLine returns the value produced by lineID, if present.
func (w Wagon) ByLine(lineID uint32) (value.Value, bool) {
	for i, l := range w.lineIDs {
		if l == lineID {
			return w.fields[i], true
		}
	}
	return value.Value{}, false
}

// LineIDs returns the wagon's origin line ids in position order.
func (w Wagon) LineIDs() []uint32 {
	out := make([]uint32, len(w.lineIDs))
	copy(out, w.lineIDs)
	return out
}

// Values returns the wagon's values in position order.
func (w Wagon) Values() []value.Value {
	out := make([]value.Value, len(w.fields))
	copy(out, w.fields)
	return out
}

// ErrLineCollision is returned by merge when two wagons disagree on the
// value for the same line id.
type ErrLineCollision struct {
	LineID uint32
}

func (e *ErrLineCollision) Error() string {
	return fmt.Sprintf("train: line collision merging line %d", e.LineID)
}

// mergeWagon concatenates two wagons' fields, keeping the first value seen
// for a given line id unless both are present and differ (LineCollision) or
// one is Null (the non-null value wins).
func mergeWagon(a, b Wagon) (Wagon, error) {
	out := NewWagon(a.lineIDs, a.fields)
	for i, lid := range b.lineIDs {
		bv := b.fields[i]
		if av, ok := out.ByLine(lid); ok {
			if av.Kind == value.KindNull {
				out = setByLine(out, lid, bv)
				continue
			}
			if bv.Kind == value.KindNull {
				continue
			}
			if !av.Equal(bv) {
				return Wagon{}, &ErrLineCollision{LineID: lid}
			}
			continue
		}
		out.lineIDs = append(out.lineIDs, lid)
		out.fields = append(out.fields, bv)
	}
	return out, nil
}

func setByLine(w Wagon, lineID uint32, v value.Value) Wagon {
	for i, l := range w.lineIDs {
		if l == lineID {
			w.fields[i] = v
			return w
		}
	}
	return w
}

// Project restricts a wagon to the given line ids, in the order requested.
func Project(w Wagon, lineIDs []uint32) Wagon {
	fields := make([]value.Value, 0, len(lineIDs))
	ids := make([]uint32, 0, len(lineIDs))
	for _, lid := range lineIDs {
		if v, ok := w.ByLine(lid); ok {
			fields = append(fields, v)
			ids = append(ids, lid)
		}
	}
	return NewWagon(ids, fields)
}

// Train is an immutable, ordered batch of wagons sharing one event
// timestamp and origin line, per spec.md §3. Trains are cheap to share
// (the wagon slice is never mutated after construction) and must never be
// mutated in place — all transformations build a new Train.
type Train struct {
	EventTS    value.Time
	OriginLine uint32
	wagons     []Wagon
}

// New builds a Train from a slice of wagons. The slice is copied so the
// caller's backing array may be reused.
func New(eventTS value.Time, originLine uint32, wagons []Wagon) *Train {
	cp := make([]Wagon, len(wagons))
	copy(cp, wagons)
	return &Train{EventTS: eventTS, OriginLine: originLine, wagons: cp}
}

// Wagons returns the train's wagons. The returned slice must not be mutated.
func (t *Train) Wagons() []Wagon { return t.wagons }

// Len returns the number of wagons.
func (t *Train) Len() int { return len(t.wagons) }

// Clone returns a new Train sharing the same wagon slice (cheap,
// reference-counted-in-spirit share per spec.md §4.2 — Go's GC keeps the
// backing array alive as long as any clone references it).
func (t *Train) Clone() *Train {
	return &Train{EventTS: t.EventTS, OriginLine: t.OriginLine, wagons: t.wagons}
}

// Merge concatenates the wagons of multiple trains pairwise (by position),
// preserving each wagon's origin_line map. Trains must have equal length;
// merge fails with ErrLineCollision if two trains disagree on a shared
// line id's value within the same wagon slot.
func Merge(trains ...*Train) (*Train, error) {
	if len(trains) == 0 {
		return New(value.Time{}, 0, nil), nil
	}
	n := trains[0].Len()
	for _, tr := range trains[1:] {
		if tr.Len() != n {
			return nil, fmt.Errorf("train: merge requires equal wagon counts, got %d and %d", n, tr.Len())
		}
	}
	merged := make([]Wagon, n)
	copy(merged, trains[0].wagons)
	for _, tr := range trains[1:] {
		for i := 0; i < n; i++ {
			mw, err := mergeWagon(merged[i], tr.wagons[i])
			if err != nil {
				return nil, err
			}
			merged[i] = mw
		}
	}
	latest := trains[0].EventTS
	for _, tr := range trains[1:] {
		if tr.EventTS.Ms > latest.Ms || (tr.EventTS.Ms == latest.Ms && tr.EventTS.Ns > latest.Ns) {
			latest = tr.EventTS
		}
	}
	return New(latest, trains[0].OriginLine, merged), nil
}

// ProjectTrain applies Project to every wagon in a train, returning a new Train.
func ProjectTrain(t *Train, lineIDs []uint32) *Train {
	out := make([]Wagon, t.Len())
	for i, w := range t.wagons {
		out[i] = Project(w, lineIDs)
	}
	return New(t.EventTS, t.OriginLine, out)
}
