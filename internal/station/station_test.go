package station_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/queue"
	"github.com/data-tracks/DataTracks/internal/station"
	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/transform"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) PublishEvent(kind string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind)
}

func buildPlan(t *testing.T, spec plan.PlanSpec) *plan.Plan {
	t.Helper()
	p, err := plan.Validate(spec)
	require.NoError(t, err)
	return p
}

func TestStationPassesThroughWithoutWindowOrTransform(t *testing.T) {
	spec := plan.PlanSpec{
		Stations: []plan.StationSpec{
			{ID: 1, Sources: []plan.IngressBinding{{URI: "NATS{subject=in}"}}},
			{ID: 2},
			{ID: 3, Sinks: []plan.EgressBinding{{URI: "NATS{subject=out}"}}},
		},
		Lines: []plan.LineSpec{
			{ID: 10, From: 1, To: 2, Capacity: 4},
			{ID: 20, From: 2, To: 3, Capacity: 4},
		},
	}
	p := buildPlan(t, spec)

	fabric := queue.NewFabric()
	fabric.Add(queue.New(10, 1, 2, 4))
	fabric.Add(queue.New(20, 2, 3, 4))

	st, ok := p.Station(2)
	require.True(t, ok)

	rt := station.NewRuntime(st, fabric, transform.NewDispatcher(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	rt.Run(ctx, &wg)

	l10, _ := fabric.Get(10)
	tr := train.New(value.Time{}, 1, []train.Wagon{train.NewWagon([]uint32{1}, []value.Value{value.Int(42)})})
	require.NoError(t, l10.Send(ctx, tr))

	l20, _ := fabric.Get(20)
	got, ok, err := l20.Receive(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := got.Wagons()[0].At(0)
	assert.Equal(t, int64(42), v.Int)
}

func TestStationLayoutMismatchRoutesToDeadLetter(t *testing.T) {
	deadLetterID := uint32(99)
	spec := plan.PlanSpec{
		Stations: []plan.StationSpec{
			{ID: 1, Sources: []plan.IngressBinding{{URI: "NATS{subject=in}"}}},
			{
				ID:         2,
				Layout:     []plan.SchemaField{{Name: "n", Type: "i"}},
				Sinks:      []plan.EgressBinding{{URI: "NATS{subject=out}"}},
				DeadLetter: &deadLetterID,
			},
		},
		Lines: []plan.LineSpec{{ID: 10, From: 1, To: 2, Capacity: 4}},
	}
	p := buildPlan(t, spec)

	fabric := queue.NewFabric()
	fabric.Add(queue.New(10, 1, 2, 4))
	fabric.Add(queue.New(deadLetterID, 2, 3, 4))

	st, _ := p.Station(2)
	events := &recordingEvents{}
	rt := station.NewRuntime(st, fabric, transform.NewDispatcher(nil), events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	rt.Run(ctx, &wg)

	l10, _ := fabric.Get(10)
	bad := train.New(value.Time{}, 1, []train.Wagon{train.NewWagon([]uint32{1}, []value.Value{value.Text("not an int")})})
	require.NoError(t, l10.Send(ctx, bad))

	dl, _ := fabric.Get(deadLetterID)
	_, ok, err := dl.Receive(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), rt.DeadLetterCount())
}

func TestStationWithNoOutgoingLinesCommitsToWAL(t *testing.T) {
	spec := plan.PlanSpec{
		Stations: []plan.StationSpec{
			{ID: 1, Sources: []plan.IngressBinding{{URI: "NATS{subject=in}"}}},
			{ID: 2},
		},
		Lines: []plan.LineSpec{{ID: 10, From: 1, To: 2, Capacity: 4}},
	}
	p := buildPlan(t, spec)

	fabric := queue.NewFabric()
	fabric.Add(queue.New(10, 1, 2, 4))

	st, ok := p.Station(2)
	require.True(t, ok)

	w, err := wal.Open(filepath.Join(t.TempDir(), "wal"), 1<<20, 16)
	require.NoError(t, err)
	defer w.Close()

	rt := station.NewRuntime(st, fabric, transform.NewDispatcher(nil), nil)
	rt.SetWAL(w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	rt.Run(ctx, &wg)

	l10, _ := fabric.Get(10)
	tr := train.New(value.Time{Ms: 7}, 1, []train.Wagon{train.NewWagon([]uint32{1}, []value.Value{value.Int(42)})})
	require.NoError(t, l10.Send(ctx, tr))

	require.Eventually(t, func() bool {
		records, err := w.Scan(0)
		return err == nil && len(records) == 1
	}, time.Second, 5*time.Millisecond)

	records, err := w.Scan(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint32(2), records[0].StationID)
	decoded, err := train.Decode(records[0].Payload)
	require.NoError(t, err)
	v, _ := decoded.Wagons()[0].At(0)
	assert.Equal(t, int64(42), v.Int)
}
