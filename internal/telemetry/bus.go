// Package telemetry implements the telemetry bus (C10): the three
// observability topics spec.md §5 names (`events`, `queues`, `statistics`),
// fed by many producers (stations, the queue fabric, engine persisters) and
// drained by one internal consumer per topic, the way
// internal/memorystore/stats.go runs a periodic sampling goroutine feeding
// a bounded channel rather than letting producers block on a slow reader.
package telemetry

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const busBufferSize = 256

// EventSample is one `events` topic entry: a discrete state transition
// (station opened, engine degraded, wal-corrupt, ...).
type EventSample struct {
	Kind   string
	Fields map[string]interface{}
}

// QueueSample is one `queues` topic entry: a periodic depth reading for a
// named queue (a line, the WAL-delay ring, or a per-engine backlog).
type QueueSample struct {
	Name     string
	Size     uint32
	Capacity uint32
}

// Stage distinguishes pre- and post-transform record counts for the
// `statistics` topic, spec.md §5.
type Stage string

const (
	StagePlain  Stage = "Plain"
	StageMapped Stage = "Mapped"
)

// CountSample is a `statistics` topic entry counting records at one stage
// of one definition.
type CountSample struct {
	DefinitionID uint16
	Stage        Stage
	Name         string
	Count        uint64
}

// ThroughputSample is a `statistics` topic entry: records/s EWMA for one
// engine, split by plain/mapped stage.
type ThroughputSample struct {
	Engine string
	Plain  float64
	Mapped float64
}

// Bus is the multi-producer, single-internal-consumer telemetry backbone.
// Publish* methods never block the caller: a full topic buffer drops the
// sample and increments a dropped-sample counter rather than applying
// backpressure to station/persister hot paths.
type Bus struct {
	events  chan EventSample
	queues  chan QueueSample
	counts  chan CountSample
	through chan ThroughputSample

	metrics *metrics

	mu          sync.Mutex
	subscribers []*Subscription
}

// New builds a Bus and its Prometheus collectors, registering them with
// reg (pass prometheus.DefaultRegisterer for the process-global registry).
func New(reg prometheus.Registerer) *Bus {
	return &Bus{
		events:  make(chan EventSample, busBufferSize),
		queues:  make(chan QueueSample, busBufferSize),
		counts:  make(chan CountSample, busBufferSize),
		through: make(chan ThroughputSample, busBufferSize),
		metrics: newMetrics(reg),
	}
}

// PublishEvent implements station.EventSink and engine.EventSink: both
// packages depend only on this method's shape, not on telemetry itself.
func (b *Bus) PublishEvent(kind string, fields map[string]interface{}) {
	select {
	case b.events <- EventSample{Kind: kind, Fields: fields}:
	default:
		b.metrics.droppedEvents.Inc()
	}
}

// ObserveQueueDepth implements queue.DepthObserver, reporting one fabric
// line's depth as a named queue sample.
func (b *Bus) ObserveQueueDepth(lineID uint32, depth, capacity int) {
	b.PublishQueueSample(lineName(lineID), uint32(depth), uint32(capacity))
}

// PublishQueueSample reports a named queue's depth. ObserveQueueDepth calls
// it for fabric lines; it also accepts queues with no natural `lineID` of
// their own (such as a WAL delay ring or a per-engine backlog).
func (b *Bus) PublishQueueSample(name string, size, capacity uint32) {
	select {
	case b.queues <- QueueSample{Name: name, Size: size, Capacity: capacity}:
	default:
		b.metrics.droppedQueues.Inc()
	}
}

// PublishCount reports a definition's record count at one pipeline stage.
func (b *Bus) PublishCount(definitionID uint16, stage Stage, name string, count uint64) {
	select {
	case b.counts <- CountSample{DefinitionID: definitionID, Stage: stage, Name: name, Count: count}:
	default:
		b.metrics.droppedStats.Inc()
	}
}

// PublishThroughput reports one engine's current records/s EWMA.
func (b *Bus) PublishThroughput(engine string, plain, mapped float64) {
	select {
	case b.through <- ThroughputSample{Engine: engine, Plain: plain, Mapped: mapped}:
	default:
		b.metrics.droppedStats.Inc()
	}
}

// Subscription is a dashboard consumer's per-topic view onto the bus,
// returned by Subscribe. Each channel is fanned out independently and
// non-blockingly: a slow subscriber misses samples rather than stalling
// the bus's internal consumer loop.
type Subscription struct {
	Events  chan EventSample
	Queues  chan QueueSample
	Counts  chan CountSample
	Through chan ThroughputSample
}

// Subscribe registers a new fan-out target, used by the dashboard's
// `/events`, `/queues`, `/statistics` websocket handlers.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		Events:  make(chan EventSample, busBufferSize),
		Queues:  make(chan QueueSample, busBufferSize),
		Counts:  make(chan CountSample, busBufferSize),
		Through: make(chan ThroughputSample, busBufferSize),
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a previously registered Subscription.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Run drains all four topics until ctx is cancelled, updating Prometheus
// state and fanning each sample out to subscribers.
func (b *Bus) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(4)
	go b.drainEvents(ctx, &wg)
	go b.drainQueues(ctx, &wg)
	go b.drainCounts(ctx, &wg)
	go b.drainThroughput(ctx, &wg)
	wg.Wait()
}

func (b *Bus) drainEvents(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.events:
			b.metrics.eventsTotal.WithLabelValues(s.Kind).Inc()
			b.fanOutEvent(s)
		}
	}
}

func (b *Bus) drainQueues(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.queues:
			b.metrics.queueDepth.WithLabelValues(s.Name).Set(float64(s.Size))
			b.fanOutQueue(s)
		}
	}
}

func (b *Bus) drainCounts(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.counts:
			b.metrics.stageCount.WithLabelValues(string(s.Stage), s.Name).Set(float64(s.Count))
			b.fanOutCount(s)
		}
	}
}

func (b *Bus) drainThroughput(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-b.through:
			b.metrics.throughputPlain.WithLabelValues(s.Engine).Set(s.Plain)
			b.metrics.throughputMapped.WithLabelValues(s.Engine).Set(s.Mapped)
			b.fanOutThroughput(s)
		}
	}
}

func (b *Bus) fanOutEvent(s EventSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.Events <- s:
		default:
		}
	}
}

func (b *Bus) fanOutQueue(s QueueSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.Queues <- s:
		default:
		}
	}
}

func (b *Bus) fanOutCount(s CountSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.Counts <- s:
		default:
		}
	}
}

func (b *Bus) fanOutThroughput(s ThroughputSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		select {
		case sub.Through <- s:
		default:
		}
	}
}

func lineName(lineID uint32) string {
	return "line-" + strconv.FormatUint(uint64(lineID), 10)
}
