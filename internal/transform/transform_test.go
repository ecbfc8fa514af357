package transform_test

import (
	"testing"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/transform"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wagon(vals ...value.Value) train.Wagon {
	ids := make([]uint32, len(vals))
	for i := range ids {
		ids[i] = uint32(i + 1)
	}
	return train.NewWagon(ids, vals)
}

func TestSQLDriverSelectStarNoWhere(t *testing.T) {
	reg := transform.NewRegistry()
	d := transform.NewDispatcher(reg)

	in := train.New(value.Time{}, 1, []train.Wagon{
		wagon(value.Int(1), value.Text("a")),
		wagon(value.Int(2), value.Text("b")),
	})

	out, err := d.Run(1, "sql", "SELECT * FROM $1", []*train.Train{in})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Len())
}

func TestSQLDriverWhereFiltersRows(t *testing.T) {
	reg := transform.NewRegistry()
	d := transform.NewDispatcher(reg)

	in := train.New(value.Time{}, 1, []train.Wagon{
		wagon(value.Int(10)),
		wagon(value.Int(1)),
	})

	out, err := d.Run(1, "sql", "SELECT * FROM $1 WHERE $1 > 5", []*train.Train{in})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Len())
	v, ok := out[0].Wagons()[0].At(0)
	require.True(t, ok)
	assert.Equal(t, int64(10), v.Int)
}

func TestSQLDriverProjectsColumns(t *testing.T) {
	reg := transform.NewRegistry()
	d := transform.NewDispatcher(reg)

	in := train.New(value.Time{}, 1, []train.Wagon{
		wagon(value.Int(1), value.Text("keep")),
	})

	out, err := d.Run(1, "sql", "SELECT $2 FROM $1", []*train.Train{in})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 1, out[0].Wagons()[0].Len())
	v, _ := out[0].Wagons()[0].At(0)
	assert.Equal(t, "keep", v.Text)
}

func TestSQLDriverRejectsMalformedQuery(t *testing.T) {
	reg := transform.NewRegistry()
	_, err := reg.Compile("sql", "NOT A QUERY")
	require.Error(t, err)
}

func TestSQLDriverAllRowsFilteredReturnsNoTrains(t *testing.T) {
	reg := transform.NewRegistry()
	d := transform.NewDispatcher(reg)

	in := train.New(value.Time{}, 1, []train.Wagon{
		wagon(value.Int(1)),
	})
	out, err := d.Run(1, "sql", "SELECT * FROM $1 WHERE $1 > 100", []*train.Train{in})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnknownLanguageFails(t *testing.T) {
	reg := transform.NewRegistry()
	d := transform.NewDispatcher(reg)
	_, err := d.Run(1, "jsonpath", "$.foo", nil)
	require.Error(t, err)
	var te *transform.ErrTransformError
	require.ErrorAs(t, err, &te)
}
