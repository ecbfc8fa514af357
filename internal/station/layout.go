package station

import (
	"fmt"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
)

// ErrLayoutMismatch reports a wagon that does not conform to a station's
// declared schema, spec.md's LayoutMismatch.
type ErrLayoutMismatch struct {
	StationID uint32
	Reason    string
}

func (e *ErrLayoutMismatch) Error() string {
	return fmt.Sprintf("station %d: layout mismatch: %s", e.StationID, e.Reason)
}

// checkLayout enforces fields against the DSL's `f?`, `s'`, `{name:s'}`
// style schema: values are coerced where an unambiguous conversion exists
// (Int<->Float, for instance) or the wagon is rejected.
func checkLayout(stationID uint32, fields []plan.SchemaField, w train.Wagon) (train.Wagon, error) {
	if len(fields) == 0 {
		return w, nil
	}
	if w.Len() < len(fields) {
		return w, &ErrLayoutMismatch{StationID: stationID, Reason: fmt.Sprintf("wagon has %d fields, layout requires %d", w.Len(), len(fields))}
	}
	ids := w.LineIDs()
	vals := w.Values()
	for i, f := range fields {
		v := vals[i]
		if v.Kind == value.KindNull {
			if f.Optional {
				continue
			}
			return w, &ErrLayoutMismatch{StationID: stationID, Reason: fmt.Sprintf("field %q is required but null", f.Name)}
		}
		coerced, ok := coerce(v, f.Type)
		if !ok {
			return w, &ErrLayoutMismatch{StationID: stationID, Reason: fmt.Sprintf("field %q expected type %q, got %s", f.Name, f.Type, v.Kind)}
		}
		vals[i] = coerced
	}
	return train.NewWagon(ids, vals), nil
}

// coerce attempts to bring v in line with the declared type code. Supported
// codes: "i" (Int), "f" (Float), "s" (Text), "b" (Bool), "t" (Time).
func coerce(v value.Value, typeCode string) (value.Value, bool) {
	switch typeCode {
	case "i":
		if v.Kind == value.KindInt {
			return v, true
		}
		if v.Kind == value.KindFloat {
			return value.Int(int64(v.Float.AsFloat64())), true
		}
	case "f":
		if v.Kind == value.KindFloat {
			return v, true
		}
		if v.Kind == value.KindInt {
			return value.FloatVal(v.Int, 0), true
		}
	case "s":
		if v.Kind == value.KindText {
			return v, true
		}
	case "b":
		if v.Kind == value.KindBool {
			return v, true
		}
	case "t":
		if v.Kind == value.KindTime {
			return v, true
		}
	case "", "any":
		return v, true
	}
	return value.Value{}, false
}
