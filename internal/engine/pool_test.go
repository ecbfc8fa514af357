package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/data-tracks/DataTracks/internal/wal"
)

// fakeEngine is a controllable in-memory Engine for exercising pool
// retry/backoff/dead-letter behavior without a real database driver.
type fakeEngine struct {
	failuresLeft int
	fatal        bool
	applied      [][]map[string]value.Value
}

func (f *fakeEngine) Init(ctx context.Context, cfg *value.Dict) error { return nil }

func (f *fakeEngine) Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error {
	if f.fatal {
		return &ErrEngineFatal{Reason: "rejected shape"}
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("transient: connection reset")
	}
	f.applied = append(f.applied, wagons)
	return nil
}

func (f *fakeEngine) Close() error { return nil }

type fakeDeadLetter struct {
	routed []*train.Train
}

func (d *fakeDeadLetter) RouteDeadLetter(engineID uint16, t *train.Train, reason string) {
	d.routed = append(d.routed, t)
}

type fakeEvents struct {
	kinds []string
}

func (e *fakeEvents) PublishEvent(kind string, fields map[string]interface{}) {
	e.kinds = append(e.kinds, kind)
}

func testTrain(n int64) *train.Train {
	return train.New(value.TimeVal(n, 0), 1, []train.Wagon{
		train.NewWagon([]uint32{1}, []value.Value{value.Int(n)}),
	})
}

func openTestWAL(t *testing.T) (*wal.WAL, *wal.OffsetStore) {
	t.Helper()
	dir := t.TempDir()
	w, err := wal.Open(filepath.Join(dir, "wal"), 0, 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	offsets, err := wal.OpenOffsetStore(filepath.Join(dir, "offsets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = offsets.Close() })
	return w, offsets
}

func TestWorkerAppliesRecordsInLSNOrder(t *testing.T) {
	w, offsets := openTestWAL(t)
	for i := int64(0); i < 3; i++ {
		_, err := w.Append(1, i, train.Encode(testTrain(i)))
		require.NoError(t, err)
	}

	fe := &fakeEngine{}
	wk := &worker{
		binding: Binding{EngineID: 1, DefinitionID: 1},
		engine:  fe,
		wal:     w,
		offsets: offsets,
		cfg:     PoolConfig{}.withDefaults(),
	}
	wk.drain(context.Background())

	require.Len(t, fe.applied, 3)
	lsn, ok, err := offsets.Get(1, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), lsn)
}

func TestWorkerRetriesTransientFailureThenSucceeds(t *testing.T) {
	w, offsets := openTestWAL(t)
	_, err := w.Append(1, 0, train.Encode(testTrain(0)))
	require.NoError(t, err)

	fe := &fakeEngine{failuresLeft: 2}
	wk := &worker{
		binding: Binding{EngineID: 2, DefinitionID: 1},
		engine:  fe,
		wal:     w,
		offsets: offsets,
		cfg: PoolConfig{
			PollInterval: time.Millisecond, BaseBackoff: time.Millisecond,
			MaxBackoff: 5 * time.Millisecond, MaxAttempts: 5,
		},
	}
	wk.drain(context.Background())

	require.Len(t, fe.applied, 1)
	_, ok, err := offsets.Get(2, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestWorkerSurfacesDegradedWithoutAckingOnExhaustedRetries(t *testing.T) {
	w, offsets := openTestWAL(t)
	_, err := w.Append(1, 0, train.Encode(testTrain(0)))
	require.NoError(t, err)

	fe := &fakeEngine{failuresLeft: 99}
	events := &fakeEvents{}
	wk := &worker{
		binding: Binding{EngineID: 3, DefinitionID: 1},
		engine:  fe,
		wal:     w,
		offsets: offsets,
		events:  events,
		cfg: PoolConfig{
			PollInterval: time.Millisecond, BaseBackoff: time.Millisecond,
			MaxBackoff: 2 * time.Millisecond, MaxAttempts: 3,
		},
	}
	wk.drain(context.Background())

	_, ok, err := offsets.Get(3, 1)
	require.NoError(t, err)
	require.False(t, ok, "record must not be acked once degraded")
	require.Contains(t, events.kinds, "engine_degraded")
}

func TestWorkerDeadLettersFatalErrorAndStillAcks(t *testing.T) {
	w, offsets := openTestWAL(t)
	_, err := w.Append(1, 0, train.Encode(testTrain(0)))
	require.NoError(t, err)

	fe := &fakeEngine{fatal: true}
	dl := &fakeDeadLetter{}
	wk := &worker{
		binding:    Binding{EngineID: 4, DefinitionID: 1},
		engine:     fe,
		wal:        w,
		offsets:    offsets,
		deadLetter: dl,
		cfg:        PoolConfig{}.withDefaults(),
	}
	wk.drain(context.Background())

	require.Len(t, dl.routed, 1)
	lsn, ok, err := offsets.Get(4, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), lsn)
}

func TestWorkerStopsAtFirstFailingRecordPreservingOrder(t *testing.T) {
	w, offsets := openTestWAL(t)
	for i := int64(0); i < 2; i++ {
		_, err := w.Append(1, i, train.Encode(testTrain(i)))
		require.NoError(t, err)
	}

	fe := &fakeEngine{failuresLeft: 99}
	wk := &worker{
		binding: Binding{EngineID: 5, DefinitionID: 1},
		engine:  fe,
		wal:     w,
		offsets: offsets,
		cfg: PoolConfig{
			PollInterval: time.Millisecond, BaseBackoff: time.Millisecond,
			MaxBackoff: time.Millisecond, MaxAttempts: 2,
		},
	}
	wk.drain(context.Background())

	require.Empty(t, fe.applied)
	_, ok, _ := offsets.Get(5, 1)
	require.False(t, ok)
}
