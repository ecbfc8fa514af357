package telemetry

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus collectors exposed on `/metrics`, built the
// way internal/metricdata/prometheus.go wires up the client_golang
// dependency — there as a query client against an external Prometheus,
// here as the exposition side feeding one.
type metrics struct {
	eventsTotal      *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	stageCount       *prometheus.GaugeVec
	throughputPlain  *prometheus.GaugeVec
	throughputMapped *prometheus.GaugeVec

	droppedEvents prometheus.Counter
	droppedQueues prometheus.Counter
	droppedStats  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatracks",
			Name:      "events_total",
			Help:      "Count of discrete lifecycle/failure events by kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datatracks",
			Name:      "queue_depth",
			Help:      "Current depth of a named queue (line, WAL-delay ring, engine backlog).",
		}, []string{"name"}),
		stageCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datatracks",
			Name:      "stage_record_count",
			Help:      "Cumulative record count observed at a pipeline stage.",
		}, []string{"stage", "name"}),
		throughputPlain: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datatracks",
			Name:      "engine_throughput_plain",
			Help:      "Plain-stage records/s EWMA per engine.",
		}, []string{"engine"}),
		throughputMapped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "datatracks",
			Name:      "engine_throughput_mapped",
			Help:      "Mapped-stage records/s EWMA per engine.",
		}, []string{"engine"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datatracks", Name: "bus_dropped_events_total",
			Help: "Events dropped because the events topic buffer was full.",
		}),
		droppedQueues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datatracks", Name: "bus_dropped_queue_samples_total",
			Help: "Queue samples dropped because the queues topic buffer was full.",
		}),
		droppedStats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datatracks", Name: "bus_dropped_statistics_total",
			Help: "Statistics samples dropped because the statistics topic buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.eventsTotal, m.queueDepth, m.stageCount,
			m.throughputPlain, m.throughputMapped,
			m.droppedEvents, m.droppedQueues, m.droppedStats,
		)
	}
	return m
}
