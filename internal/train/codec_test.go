package train_test

import (
	"testing"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/stretchr/testify/require"
)

func TestTrainCodecRoundTrip(t *testing.T) {
	original := train.New(value.TimeVal(1500, 7), 3, []train.Wagon{
		wagon([]uint32{1, 2}, []value.Value{value.Int(42), value.Text("hello")}),
		wagon([]uint32{1, 2}, []value.Value{value.Null(), value.Bool(true)}),
	})

	buf := train.Encode(original)
	decoded, err := train.Decode(buf)
	require.NoError(t, err)

	require.Equal(t, original.EventTS, decoded.EventTS)
	require.Equal(t, original.OriginLine, decoded.OriginLine)
	require.Equal(t, original.Len(), decoded.Len())

	for i, w := range original.Wagons() {
		dw := decoded.Wagons()[i]
		require.Equal(t, w.LineIDs(), dw.LineIDs())
		for _, lineID := range w.LineIDs() {
			want, _ := w.ByLine(lineID)
			got, _ := dw.ByLine(lineID)
			require.True(t, want.Equal(got))
		}
	}
}

func TestTrainCodecRejectsTruncatedFrame(t *testing.T) {
	original := train.New(value.TimeVal(0, 0), 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
	})
	buf := train.Encode(original)
	_, err := train.Decode(buf[:len(buf)-1])
	require.Error(t, err)
}
