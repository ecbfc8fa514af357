package value_test

import (
	"testing"

	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtrip(t *testing.T, v value.Value) value.Value {
	t.Helper()
	buf := value.Encode(nil, v)
	got, n, err := value.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	return got
}

func TestCodecRoundTripScalars(t *testing.T) {
	cases := []value.Value{
		value.Null(),
		value.Int(42),
		value.Int(-9_007_199_254_740_991),
		value.FloatVal(12345, 2),
		value.Bool(true),
		value.Bool(false),
		value.Text("hello, world"),
		value.TimeVal(1_700_000_000_000, 999_999),
		value.Date(19723),
	}
	for _, v := range cases {
		got := roundtrip(t, v)
		assert.True(t, v.Equal(got), "roundtrip mismatch for %s", v.Kind)
	}
}

func TestCodecRoundTripArray(t *testing.T) {
	v := value.Array([]value.Value{value.Int(1), value.Text("a"), value.Bool(true)})
	got := roundtrip(t, v)
	assert.True(t, v.Equal(got))
}

func TestCodecRoundTripDict(t *testing.T) {
	d := value.NewDict()
	d.Set("b", value.Int(2))
	d.Set("a", value.Int(1))
	v := value.DictVal(d)
	got := roundtrip(t, v)
	require.True(t, v.Equal(got))
	// insertion order preserved (Open Question (a))
	entries := got.Dict.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, "a", entries[1].Key)
}

// S1 from spec.md §8.
func TestCodecScenarioS1Node(t *testing.T) {
	props := value.NewDict()
	props.Set("email", value.Text("dev@x"))
	n := value.NodeVal(value.Node{
		ID:         9_007_199_254_740_991,
		Labels:     []string{"User", "Admin"},
		Properties: props,
	})
	got := roundtrip(t, n)
	assert.True(t, n.Equal(got))
}

func TestCodecRoundTripEdge(t *testing.T) {
	props := value.NewDict()
	props.Set("since", value.Int(2020))
	e := value.EdgeVal(value.Edge{
		ID:         1,
		Label:      "KNOWS",
		StartID:    10,
		EndID:      20,
		Properties: props,
	})
	got := roundtrip(t, e)
	assert.True(t, e.Equal(got))
}

func TestDecodeTruncatedFails(t *testing.T) {
	buf := value.Encode(nil, value.Text("hello"))
	_, _, err := value.Decode(buf[:len(buf)-1])
	require.Error(t, err)
	var ce *value.CodecError
	require.ErrorAs(t, err, &ce)
}

func TestDecodeUnknownTagFails(t *testing.T) {
	_, _, err := value.Decode([]byte{255})
	require.Error(t, err)
}

func TestDecodeEmptyFails(t *testing.T) {
	_, _, err := value.Decode(nil)
	require.Error(t, err)
}

func TestDecodeDuplicateDictKeyFails(t *testing.T) {
	// hand-craft a Dict frame with a duplicate key "a"
	buf := []byte{byte(value.KindDict)}
	buf = append(buf, 2, 0, 0, 0) // count = 2
	enc := func(b []byte, s string) []byte {
		n := uint32(len(s))
		b = append(b, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		return append(b, s...)
	}
	buf = enc(buf, "a")
	buf = value.Encode(buf, value.Int(1))
	buf = enc(buf, "a")
	buf = value.Encode(buf, value.Int(2))
	_, _, err := value.Decode(buf)
	require.Error(t, err)
}
