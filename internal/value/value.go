// Package value implements DataTracks' canonical payload: a closed
// tagged-union Value type shared by ingress, operators, the WAL, and the
// wire protocols, plus its binary codec.
package value

import "fmt"

// Kind tags the variant held by a Value. Numeric values match the codec's
// wire tag exactly (see codec.go) so Kind can double as the encoded tag.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindText
	KindTime
	KindDate
	KindArray
	KindDict
	KindNode
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindText:
		return "Text"
	case KindTime:
		return "Time"
	case KindDate:
		return "Date"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dict"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Edge"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Time is a point in time expressed as milliseconds since epoch plus a
// sub-millisecond nanosecond remainder (0 <= Ns < 1_000_000), per spec.
type Time struct {
	Ms int64
	Ns uint32
}

// Dict is an ordered key->Value map. Keys are unique; iteration order is
// insertion order and is semantically significant (Open Question (a)).
type Dict struct {
	entries []DictEntry
	index   map[string]int
}

type DictEntry struct {
	Key   string
	Value Value
}

// NewDict builds an empty, ready-to-use Dict.
func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

// Set inserts or overwrites key's value, preserving the first-seen position.
func (d *Dict) Set(key string, v Value) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = v
		return
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, DictEntry{Key: key, Value: v})
}

// Get returns the value for key and whether it was present.
func (d *Dict) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	i, ok := d.index[key]
	if !ok {
		return Value{}, false
	}
	return d.entries[i].Value, true
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns the entries in insertion order. Callers must not mutate
// the returned slice's backing array.
func (d *Dict) Entries() []DictEntry {
	if d == nil {
		return nil
	}
	return d.entries
}

// Clone returns a deep-enough copy (new backing slice/map, shared Values
// since Values are themselves immutable once constructed).
func (d *Dict) Clone() *Dict {
	if d == nil {
		return NewDict()
	}
	nd := &Dict{
		entries: make([]DictEntry, len(d.entries)),
		index:   make(map[string]int, len(d.index)),
	}
	copy(nd.entries, d.entries)
	for k, v := range d.index {
		nd.index[k] = v
	}
	return nd
}

// Equal reports structural equality, independent of insertion order (two
// dicts with the same key/value pairs inserted in different order are
// equal; iteration order is only significant for serialization).
func (d *Dict) Equal(o *Dict) bool {
	if d.Len() != o.Len() {
		return false
	}
	for _, e := range d.Entries() {
		ov, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

// Node is a labeled graph vertex with properties.
type Node struct {
	ID         int64
	Labels     []string
	Properties *Dict
}

// Edge is a labeled, directed graph relationship.
type Edge struct {
	ID         int64
	Label      string
	StartID    int64
	EndID      int64
	Properties *Dict
}

// Value is the closed tagged union described by spec.md §3. Exactly one of
// the typed fields is meaningful for a given Kind; callers must switch on
// Kind, never infer it from which field is non-zero.
type Value struct {
	Kind Kind

	Int   int64
	Float Decimal
	Bool  bool
	Text  string
	Time  Time
	Date  int64 // days since epoch

	Array []Value
	Dict  *Dict
	Node  Node
	Edge  Edge
}

// Decimal is Float's mantissa/shift representation: value = mantissa * 10^-shift.
type Decimal struct {
	Mantissa int64
	Shift    uint8
}

func Null() Value                 { return Value{Kind: KindNull} }
func Int(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Text(s string) Value         { return Value{Kind: KindText, Text: s} }
func TimeVal(ms int64, ns uint32) Value {
	return Value{Kind: KindTime, Time: Time{Ms: ms, Ns: ns}}
}
func Date(daysSinceEpoch int64) Value { return Value{Kind: KindDate, Date: daysSinceEpoch} }
func Array(vs []Value) Value          { return Value{Kind: KindArray, Array: vs} }
func DictVal(d *Dict) Value           { return Value{Kind: KindDict, Dict: d} }
func NodeVal(n Node) Value            { return Value{Kind: KindNode, Node: n} }
func EdgeVal(e Edge) Value            { return Value{Kind: KindEdge, Edge: e} }

// FloatVal builds a Float value, normalizing -0 shift cases isn't required:
// value = mantissa * 10^-shift.
func FloatVal(mantissa int64, shift uint8) Value {
	return Value{Kind: KindFloat, Float: Decimal{Mantissa: mantissa, Shift: shift}}
}

// AsFloat64 converts the decimal Float to a float64 for arithmetic/transform use.
func (d Decimal) AsFloat64() float64 {
	f := float64(d.Mantissa)
	for i := uint8(0); i < d.Shift; i++ {
		f /= 10
	}
	return f
}

// normalized strips trailing decimal zeros so equal decimal values with
// different (mantissa, shift) pairs compare equal, per spec.md §3
// ("ordering defined... for Float (after normalization)").
func (d Decimal) normalized() Decimal {
	for d.Shift > 0 && d.Mantissa%10 == 0 {
		d.Mantissa /= 10
		d.Shift--
	}
	return d
}

// Equal reports structural equality per spec.md §3.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		a, b := v.Float.normalized(), o.Float.normalized()
		return a == b
	case KindBool:
		return v.Bool == o.Bool
	case KindText:
		return v.Text == o.Text
	case KindTime:
		return v.Time == o.Time
	case KindDate:
		return v.Date == o.Date
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindDict:
		return v.Dict.Equal(o.Dict)
	case KindNode:
		if v.Node.ID != o.Node.ID || len(v.Node.Labels) != len(o.Node.Labels) {
			return false
		}
		for i := range v.Node.Labels {
			if v.Node.Labels[i] != o.Node.Labels[i] {
				return false
			}
		}
		return v.Node.Properties.Equal(o.Node.Properties)
	case KindEdge:
		return v.Edge.ID == o.Edge.ID && v.Edge.Label == o.Edge.Label &&
			v.Edge.StartID == o.Edge.StartID && v.Edge.EndID == o.Edge.EndID &&
			v.Edge.Properties.Equal(o.Edge.Properties)
	default:
		return false
	}
}

// Compare orders two Values. Ordering is only defined for Int, Float, Time,
// Date and Text per spec.md §3; other kinds return an error.
func Compare(a, b Value) (int, error) {
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("value: cannot compare %s with %s", a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindInt:
		return cmpInt64(a.Int, b.Int), nil
	case KindFloat:
		return cmpFloat64(a.Float.AsFloat64(), b.Float.AsFloat64()), nil
	case KindTime:
		if a.Time.Ms != b.Time.Ms {
			return cmpInt64(a.Time.Ms, b.Time.Ms), nil
		}
		return cmpInt64(int64(a.Time.Ns), int64(b.Time.Ns)), nil
	case KindDate:
		return cmpInt64(a.Date, b.Date), nil
	case KindText:
		switch {
		case a.Text < b.Text:
			return -1, nil
		case a.Text > b.Text:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("value: ordering undefined for kind %s", a.Kind)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
