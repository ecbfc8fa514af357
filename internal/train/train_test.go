package train_test

import (
	"testing"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wagon(lineIDs []uint32, vals []value.Value) train.Wagon {
	return train.NewWagon(lineIDs, vals)
}

func TestMergeConcatenatesDisjointLines(t *testing.T) {
	a := train.New(value.TimeVal(100, 0), 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
	})
	b := train.New(value.TimeVal(200, 0), 2, []train.Wagon{
		wagon([]uint32{2}, []value.Value{value.Text("x")}),
	})

	merged, err := train.Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, 1, merged.Len())

	w := merged.Wagons()[0]
	v1, ok := w.ByLine(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), v1.Int)
	v2, ok := w.ByLine(2)
	require.True(t, ok)
	assert.Equal(t, "x", v2.Text)

	// event ts takes the later of the two.
	assert.Equal(t, int64(200), merged.EventTS.Ms)
}

func TestMergeNullDoesNotCollide(t *testing.T) {
	a := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Null()}),
	})
	b := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(7)}),
	})

	merged, err := train.Merge(a, b)
	require.NoError(t, err)
	v, ok := merged.Wagons()[0].ByLine(1)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int)
}

func TestMergeLineCollisionFails(t *testing.T) {
	a := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
	})
	b := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(2)}),
	})

	_, err := train.Merge(a, b)
	require.Error(t, err)
	var collision *train.ErrLineCollision
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, uint32(1), collision.LineID)
}

func TestMergeRequiresEqualWagonCounts(t *testing.T) {
	a := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
	})
	b := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
		wagon([]uint32{2}, []value.Value{value.Int(2)}),
	})

	_, err := train.Merge(a, b)
	require.Error(t, err)
}

func TestProjectRestrictsAndReordersFields(t *testing.T) {
	w := wagon([]uint32{1, 2, 3}, []value.Value{value.Int(1), value.Int(2), value.Int(3)})
	p := train.Project(w, []uint32{3, 1})

	require.Equal(t, 2, p.Len())
	v0, _ := p.At(0)
	v1, _ := p.At(1)
	assert.Equal(t, int64(3), v0.Int)
	assert.Equal(t, int64(1), v1.Int)
}

func TestProjectTrainAppliesToEveryWagon(t *testing.T) {
	tr := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1, 2}, []value.Value{value.Int(1), value.Int(2)}),
		wagon([]uint32{1, 2}, []value.Value{value.Int(10), value.Int(20)}),
	})
	out := train.ProjectTrain(tr, []uint32{2})
	require.Equal(t, 2, out.Len())
	for _, w := range out.Wagons() {
		assert.Equal(t, 1, w.Len())
	}
	v, ok := out.Wagons()[0].ByLine(2)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Int)
}

func TestCloneSharesWagonsCheaply(t *testing.T) {
	tr := train.New(value.Time{}, 1, []train.Wagon{
		wagon([]uint32{1}, []value.Value{value.Int(1)}),
	})
	clone := tr.Clone()
	assert.Equal(t, tr.Wagons(), clone.Wagons())
}
