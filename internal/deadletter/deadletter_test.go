package deadletter_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/deadletter"
	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
)

func TestSinkRoundTripsThroughReadAll(t *testing.T) {
	dir := t.TempDir()
	sink, err := deadletter.NewSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	tr := train.New(value.Time{Ms: 5}, 1, []train.Wagon{train.NewWagon([]uint32{1}, []value.Value{value.Text("poison")})})
	sink.RouteDeadLetter(7, tr, "schema violation")
	sink.RouteDeadLetter(7, tr, "duplicate key")

	records, err := deadletter.ReadAll(filepath.Join(dir, "engine-7.dlq"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "schema violation", records[0].Reason)
	assert.Equal(t, "duplicate key", records[1].Reason)
	v, _ := records[0].Train.Wagons()[0].At(0)
	assert.Equal(t, "poison", v.Text)
}
