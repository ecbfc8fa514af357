package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/telemetry"
)

func TestBusPublishEventFansOutToSubscribers(t *testing.T) {
	bus := telemetry.New(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.PublishEvent("station_opened", map[string]interface{}{"station_id": 1})

	select {
	case ev := <-sub.Events:
		require.Equal(t, "station_opened", ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event fan-out")
	}
}

func TestBusObserveQueueDepthReportsNamedSample(t *testing.T) {
	bus := telemetry.New(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.ObserveQueueDepth(7, 3, 10)

	select {
	case qs := <-sub.Queues:
		require.Equal(t, "line-7", qs.Name)
		require.Equal(t, uint32(3), qs.Size)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queue sample fan-out")
	}
}

func TestBusPublishCountAndThroughput(t *testing.T) {
	bus := telemetry.New(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.PublishCount(4, telemetry.StageMapped, "rows_out", 42)
	bus.PublishThroughput("postgres", 10.5, 9.0)

	select {
	case c := <-sub.Counts:
		require.Equal(t, uint16(4), c.DefinitionID)
		require.Equal(t, uint64(42), c.Count)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for count fan-out")
	}
	select {
	case th := <-sub.Through:
		require.Equal(t, "postgres", th.Engine)
		require.InDelta(t, 10.5, th.Plain, 0.001)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for throughput fan-out")
	}
}

func TestBusPublishEventDoesNotBlockWhenTopicBufferFull(t *testing.T) {
	bus := telemetry.New(prometheus.NewRegistry())
	// No Run started: events accumulate in the bus's own buffered channel
	// up to its capacity without blocking the publisher.
	for i := 0; i < 1000; i++ {
		bus.PublishEvent("noop", nil)
	}
}
