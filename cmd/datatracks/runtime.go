package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/internal/ingress"
	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/queue"
	"github.com/data-tracks/DataTracks/internal/server"
	"github.com/data-tracks/DataTracks/internal/station"
	"github.com/data-tracks/DataTracks/internal/telemetry"
	"github.com/data-tracks/DataTracks/internal/transform"
	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/data-tracks/DataTracks/pkg/log"
)

// activationDeps are the process-wide singletons a plan's stations wire
// into: the WAL every terminal station commits to, the telemetry bus
// every station/ingress driver reports through, and the dashboard's
// channel hub tapping every line for /channel/{topic}.
type activationDeps struct {
	wal      *wal.WAL
	events   *telemetry.Bus
	channels *server.ChannelHub
}

// activation holds everything started for one running plan, so it can be
// torn down (or just left to drain on ctx cancellation) by the caller.
type activation struct {
	fabric  *queue.Fabric
	closers []io.Closer
}

// activatePlan builds the line fabric for p and starts one goroutine per
// station: a station.Runtime for every station that doesn't own an egress
// sink, and an ingress.Source/Sink goroutine for every binding, following
// the dataflow in spec.md §2 (Ingress -> [line] -> Station -> [line] ->
// ... -> WAL -> Persister -> Engine). Returns once every station and
// driver has been started; they keep running until ctx is cancelled.
func activatePlan(ctx context.Context, wg *sync.WaitGroup, p *plan.Plan, deps activationDeps) (*activation, error) {
	fabric := queue.NewFabric()
	for _, l := range p.Lines() {
		line := queue.New(l.ID, l.From, l.To, l.Capacity)
		if deps.channels != nil {
			line.SetObserver(deps.channels)
		}
		fabric.Add(line)
	}

	dispatcher := transform.NewDispatcher(nil)
	act := &activation{fabric: fabric}

	for _, st := range p.Stations() {
		if len(st.Sinks) > 0 {
			if err := wireSinks(ctx, wg, st, fabric, act); err != nil {
				return nil, err
			}
		} else {
			rt := station.NewRuntime(st, fabric, dispatcher, deps.events)
			if len(st.Outgoing()) == 0 {
				rt.SetWAL(deps.wal)
			}
			rt.Run(ctx, wg)
		}

		if len(st.Sources) > 0 {
			if err := wireSources(ctx, wg, st, fabric, act); err != nil {
				return nil, err
			}
		}
	}

	return act, nil
}

// wireSources pairs each of st's ingress bindings with one of its
// outgoing lines, in declaration order. A station with more sources than
// outgoing lines (or vice versa) leaves the surplus unwired and logged;
// spec.md's plan DSL doesn't define ingress fan-out semantics.
func wireSources(ctx context.Context, wg *sync.WaitGroup, st *plan.Station, fabric *queue.Fabric, act *activation) error {
	outgoing := st.Outgoing()
	n := len(st.Sources)
	if len(outgoing) < n {
		n = len(outgoing)
	}
	if len(st.Sources) != len(outgoing) {
		log.Warnf("station %d: %d ingress bindings but %d outgoing lines, wiring %d", st.ID, len(st.Sources), len(outgoing), n)
	}

	for i := 0; i < n; i++ {
		binding, err := ingress.ParseBinding(st.Sources[i].URI)
		if err != nil {
			return fmt.Errorf("station %d source %q: %w", st.ID, st.Sources[i].URI, err)
		}
		source, err := ingress.NewSource(binding)
		if err != nil {
			return fmt.Errorf("station %d source %q: %w", st.ID, st.Sources[i].URI, err)
		}
		line, ok := fabric.Get(outgoing[i])
		if !ok {
			continue
		}
		act.closers = append(act.closers, source)

		wg.Add(1)
		go func(source ingress.Source, line *queue.Line) {
			defer wg.Done()
			if err := source.Run(ctx, line); err != nil && ctx.Err() == nil {
				log.Errorf("station %d ingress source: %v", st.ID, err)
			}
		}(source, line)
	}
	return nil
}

// wireSinks pairs each of st's egress bindings with one of its incoming
// lines, bypassing station.Runtime entirely for this station: the sink
// drains the line directly, the same bypass a pure-ingress station (no
// incoming lines) gets from wireSources above.
func wireSinks(ctx context.Context, wg *sync.WaitGroup, st *plan.Station, fabric *queue.Fabric, act *activation) error {
	incoming := st.Incoming()
	n := len(st.Sinks)
	if len(incoming) < n {
		n = len(incoming)
	}
	if len(st.Sinks) != len(incoming) {
		log.Warnf("station %d: %d egress bindings but %d incoming lines, wiring %d", st.ID, len(st.Sinks), len(incoming), n)
	}

	for i := 0; i < n; i++ {
		binding, err := ingress.ParseBinding(st.Sinks[i].URI)
		if err != nil {
			return fmt.Errorf("station %d sink %q: %w", st.ID, st.Sinks[i].URI, err)
		}
		sink, err := ingress.NewSink(binding)
		if err != nil {
			return fmt.Errorf("station %d sink %q: %w", st.ID, st.Sinks[i].URI, err)
		}
		line, ok := fabric.Get(incoming[i])
		if !ok {
			continue
		}
		act.closers = append(act.closers, sink)

		wg.Add(1)
		go func(sink ingress.Sink, line *queue.Line) {
			defer wg.Done()
			if err := sink.Run(ctx, line); err != nil && ctx.Err() == nil {
				log.Errorf("station %d egress sink: %v", st.ID, err)
			}
		}(sink, line)
	}
	return nil
}

// Close releases every ingress/egress driver started for this activation.
// Station runtimes have no resources of their own beyond the lines they
// share with the fabric; they simply stop once ctx is cancelled.
func (a *activation) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// sampleQueues periodically reports every fabric line's depth on the
// telemetry bus's queues topic (spec.md §4.9), until ctx is cancelled.
func sampleQueues(ctx context.Context, wg *sync.WaitGroup, fabric *queue.Fabric, bus *telemetry.Bus, interval time.Duration) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, l := range fabric.All() {
					l.Sample(bus)
				}
			}
		}
	}()
}
