package train

import (
	"strconv"

	"github.com/data-tracks/DataTracks/internal/value"
)

// Encode serializes a Train to the binary Value codec (spec.md §4.1,
// §4.7's WAL record `train:binary(Value codec)` field), so a Train can be
// written verbatim into a WAL record payload or the `/channel/*` wire
// protocol. A Train becomes a Dict of {event_ts, origin_line, wagons}; each
// wagon becomes a Dict keyed by its line id (decimal text, since Dict keys
// are Text) with a parallel array recording the line id order.
func Encode(t *Train) []byte {
	d := value.NewDict()
	d.Set("event_ts", value.Value{Kind: value.KindTime, Time: t.EventTS})
	d.Set("origin_line", value.Int(int64(t.OriginLine)))

	wagons := make([]value.Value, len(t.wagons))
	for i, w := range t.wagons {
		wagons[i] = encodeWagon(w)
	}
	d.Set("wagons", value.Array(wagons))

	return value.Encode(nil, value.DictVal(d))
}

func encodeWagon(w Wagon) value.Value {
	order := make([]value.Value, w.Len())
	wd := value.NewDict()
	for i, lineID := range w.lineIDs {
		key := strconv.FormatUint(uint64(lineID), 10)
		wd.Set(key, w.fields[i])
		order[i] = value.Int(int64(lineID))
	}
	outer := value.NewDict()
	outer.Set("order", value.Array(order))
	outer.Set("fields", value.DictVal(wd))
	return value.DictVal(outer)
}

// Decode parses a Train from the bytes produced by Encode, failing with
// *value.CodecError on a truncated or malformed frame.
func Decode(buf []byte) (*Train, error) {
	v, _, err := value.Decode(buf)
	if err != nil {
		return nil, err
	}
	eventTSV, _ := v.Dict.Get("event_ts")
	originLineV, _ := v.Dict.Get("origin_line")
	wagonsV, _ := v.Dict.Get("wagons")

	wagons := make([]Wagon, len(wagonsV.Array))
	for i, wv := range wagonsV.Array {
		wagons[i] = decodeWagon(wv)
	}
	return New(eventTSV.Time, uint32(originLineV.Int), wagons), nil
}

func decodeWagon(v value.Value) Wagon {
	order := v.Dict.Entries()
	var orderArr []value.Value
	var fields *value.Dict
	for _, e := range order {
		switch e.Key {
		case "order":
			orderArr = e.Value.Array
		case "fields":
			fields = e.Value.Dict
		}
	}
	lineIDs := make([]uint32, len(orderArr))
	values := make([]value.Value, len(orderArr))
	for i, lv := range orderArr {
		lineIDs[i] = uint32(lv.Int)
		key := strconv.FormatUint(uint64(lineIDs[i]), 10)
		fv, _ := fields.Get(key)
		values[i] = fv
	}
	return NewWagon(lineIDs, values)
}
