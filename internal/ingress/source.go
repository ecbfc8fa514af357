package ingress

import (
	"context"

	"github.com/data-tracks/DataTracks/internal/queue"
)

// Source pumps trains arriving from an external system onto a station's
// inbound Line, until ctx is cancelled or the external connection fails.
type Source interface {
	Run(ctx context.Context, line *queue.Line) error
	Close() error
}

// Sink drains trains from a station's outbound Line and forwards them to
// an external system, until ctx is cancelled or the line is closed.
type Sink interface {
	Run(ctx context.Context, line *queue.Line) error
	Close() error
}

// NewSource builds the concrete Source for a parsed Binding. Only the
// NATS scheme has a shipped driver here; MQTT/TCP parse successfully but
// construction is out of scope per spec.md §1.
func NewSource(b *Binding) (Source, error) {
	switch b.Scheme {
	case "NATS":
		return newNatsSource(b.Params)
	case "MQTT", "TCP":
		return nil, &ErrUnsupportedDriver{Scheme: b.Scheme}
	default:
		return nil, &ErrUnsupportedDriver{Scheme: b.Scheme}
	}
}

// NewSink builds the concrete Sink for a parsed Binding, mirroring NewSource.
func NewSink(b *Binding) (Sink, error) {
	switch b.Scheme {
	case "NATS":
		return newNatsSink(b.Params)
	case "MQTT", "TCP":
		return nil, &ErrUnsupportedDriver{Scheme: b.Scheme}
	default:
		return nil, &ErrUnsupportedDriver{Scheme: b.Scheme}
	}
}
