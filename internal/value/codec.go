package value

import (
	"encoding/binary"
	"fmt"
)

// CodecError reports a failure to decode a Value frame: truncated input or
// an unknown type tag, per spec.md §4.1.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string { return "value: codec error: " + e.Reason }

func newCodecError(format string, args ...interface{}) *CodecError {
	return &CodecError{Reason: fmt.Sprintf(format, args...)}
}

// Encode appends v's binary frame to buf and returns the extended slice.
// Layout is little-endian: u8 type tag followed by the per-tag payload
// described in spec.md §4.1. Encode never fails: every well-formed Value
// is representable.
func Encode(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindNull:
		// no payload
	case KindInt:
		buf = appendI64(buf, v.Int)
	case KindFloat:
		buf = appendI64(buf, v.Float.Mantissa)
		buf = append(buf, v.Float.Shift)
	case KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindText:
		buf = appendText(buf, v.Text)
	case KindTime:
		buf = appendI64(buf, v.Time.Ms)
		buf = appendU32(buf, v.Time.Ns)
	case KindDate:
		buf = appendI64(buf, v.Date)
	case KindArray:
		buf = appendU32(buf, uint32(len(v.Array)))
		for _, e := range v.Array {
			buf = Encode(buf, e)
		}
	case KindDict:
		buf = encodeDict(buf, v.Dict)
	case KindNode:
		buf = appendI64(buf, v.Node.ID)
		buf = appendU32(buf, uint32(len(v.Node.Labels)))
		for _, l := range v.Node.Labels {
			buf = appendText(buf, l)
		}
		buf = encodeDict(buf, v.Node.Properties)
	case KindEdge:
		buf = appendI64(buf, v.Edge.ID)
		buf = appendText(buf, v.Edge.Label)
		buf = appendI64(buf, v.Edge.StartID)
		buf = appendI64(buf, v.Edge.EndID)
		buf = encodeDict(buf, v.Edge.Properties)
	}
	return buf
}

func encodeDict(buf []byte, d *Dict) []byte {
	entries := d.Entries()
	buf = appendU32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = appendText(buf, e.Key)
		buf = Encode(buf, e.Value)
	}
	return buf
}

func appendI64(buf []byte, i int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(i))
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, u uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], u)
	return append(buf, tmp[:]...)
}

func appendText(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Decode reads one Value frame from the front of buf, returning the value
// and the number of bytes consumed. It fails with *CodecError on truncated
// input or an unrecognized type tag.
func Decode(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, newCodecError("empty input, expected type tag")
	}
	tag := Kind(buf[0])
	rest := buf[1:]
	consumed := 1

	switch tag {
	case KindNull:
		return Value{Kind: KindNull}, consumed, nil
	case KindInt:
		i, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindInt, Int: i}, consumed + n, nil
	case KindFloat:
		m, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if len(rest) < n+1 {
			return Value{}, 0, newCodecError("truncated Float shift byte")
		}
		shift := rest[n]
		return Value{Kind: KindFloat, Float: Decimal{Mantissa: m, Shift: shift}}, consumed + n + 1, nil
	case KindBool:
		if len(rest) < 1 {
			return Value{}, 0, newCodecError("truncated Bool payload")
		}
		if rest[0] > 1 {
			return Value{}, 0, newCodecError("invalid Bool byte %d", rest[0])
		}
		return Value{Kind: KindBool, Bool: rest[0] == 1}, consumed + 1, nil
	case KindText:
		s, n, err := readText(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindText, Text: s}, consumed + n, nil
	case KindTime:
		ms, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		ns, n2, err := readU32(rest[n:])
		if err != nil {
			return Value{}, 0, err
		}
		if ns >= 1_000_000 {
			return Value{}, 0, newCodecError("Time.ns %d out of range", ns)
		}
		return Value{Kind: KindTime, Time: Time{Ms: ms, Ns: ns}}, consumed + n + n2, nil
	case KindDate:
		d, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindDate, Date: d}, consumed + n, nil
	case KindArray:
		count, n, err := readU32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		off := n
		arr := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			el, m, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			arr = append(arr, el)
			off += m
		}
		return Value{Kind: KindArray, Array: arr}, consumed + off, nil
	case KindDict:
		d, n, err := decodeDict(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindDict, Dict: d}, consumed + n, nil
	case KindNode:
		id, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		off := n
		count, n2, err := readU32(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n2
		labels := make([]string, 0, count)
		for i := uint32(0); i < count; i++ {
			s, m, err := readText(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			labels = append(labels, s)
			off += m
		}
		d, n3, err := decodeDict(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n3
		return Value{Kind: KindNode, Node: Node{ID: id, Labels: labels, Properties: d}}, consumed + off, nil
	case KindEdge:
		id, n, err := readI64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		off := n
		label, n2, err := readText(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n2
		start, n3, err := readI64(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n3
		end, n4, err := readI64(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n4
		d, n5, err := decodeDict(rest[off:])
		if err != nil {
			return Value{}, 0, err
		}
		off += n5
		return Value{Kind: KindEdge, Edge: Edge{ID: id, Label: label, StartID: start, EndID: end, Properties: d}}, consumed + off, nil
	default:
		return Value{}, 0, newCodecError("unknown type tag %d", tag)
	}
}

func decodeDict(buf []byte) (*Dict, int, error) {
	count, n, err := readU32(buf)
	if err != nil {
		return nil, 0, err
	}
	off := n
	d := NewDict()
	for i := uint32(0); i < count; i++ {
		key, m, err := readText(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += m
		if _, exists := d.Get(key); exists {
			return nil, 0, newCodecError("duplicate Dict key %q", key)
		}
		v, m2, err := Decode(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += m2
		d.Set(key, v)
	}
	return d, off, nil
}

func readI64(buf []byte) (int64, int, error) {
	if len(buf) < 8 {
		return 0, 0, newCodecError("truncated i64")
	}
	return int64(binary.LittleEndian.Uint64(buf)), 8, nil
}

func readU32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, newCodecError("truncated u32")
	}
	return binary.LittleEndian.Uint32(buf), 4, nil
}

func readText(buf []byte) (string, int, error) {
	length, n, err := readU32(buf)
	if err != nil {
		return "", 0, err
	}
	if uint32(len(buf)-n) < length {
		return "", 0, newCodecError("truncated Text payload (want %d bytes)", length)
	}
	s := string(buf[n : n+int(length)])
	return s, n + int(length), nil
}
