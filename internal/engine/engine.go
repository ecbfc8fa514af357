// Package engine implements the engine persister pool (C9): the Engine
// adapter interface, its per-kind concrete implementations, and the
// worker pool that drains the WAL into N backend engines with retry,
// backoff, and poison isolation.
package engine

import (
	"context"
	"fmt"

	"github.com/data-tracks/DataTracks/internal/value"
)

// Kind enumerates the supported backend engine types, spec.md §3's Engine
// binding `kind` field.
type Kind string

const (
	KindSQLite   Kind = "SQLite"
	KindPostgres Kind = "Postgres"
	KindNeo4j    Kind = "Neo4j"
	KindMongo    Kind = "Mongo"
)

// Binding is spec.md §3's Engine binding: `{engine_id, definition_id, kind, config}`.
type Binding struct {
	EngineID     uint16
	DefinitionID uint16
	Kind         Kind
	Config       *value.Dict
}

// Engine is the interface every backend adapter implements, following the
// teacher's MetricDataRepository shape (internal/metricdata/metricdata.go):
// Init once with raw config, then the single domain operation.
type Engine interface {
	// Init prepares the engine for Apply calls (opening connections,
	// bootstrapping schema, etc).
	Init(ctx context.Context, config *value.Dict) error
	// Apply persists one train's wagons, tagged with the originating
	// station id. A fatal error (the engine rejects the shape of the data,
	// e.g. a schema violation) must be distinguishable from a transient
	// one; adapters wrap fatal failures in *ErrEngineFatal.
	Apply(ctx context.Context, stationID uint32, wagons []map[string]value.Value) error
	// Close releases the engine's resources.
	Close() error
}

// ErrEngineDegraded reports that a persister's retry budget for the
// current record has been exhausted; the worker pauses (does not ack)
// and surfaces this for telemetry, per spec.md §4.8.
type ErrEngineDegraded struct {
	EngineID uint16
}

func (e *ErrEngineDegraded) Error() string {
	return fmt.Sprintf("engine %d: degraded, retry budget exhausted", e.EngineID)
}

// ErrEngineFatal reports a non-retryable rejection (e.g. a schema
// violation) that routes the offending train to the dead-letter sink;
// the persister still acks, per spec.md's at-least-once-with-poison-isolation.
type ErrEngineFatal struct {
	EngineID uint16
	Reason   string
}

func (e *ErrEngineFatal) Error() string {
	return fmt.Sprintf("engine %d: fatal: %s", e.EngineID, e.Reason)
}

// New builds the concrete Engine for binding.Kind, the way
// internal/metricdata/metricdata.go switches MetricDataRepository by
// cluster.MetricDataRepository.Kind.
func New(kind Kind) (Engine, error) {
	switch kind {
	case KindSQLite:
		return newSQLiteEngine(), nil
	case KindPostgres:
		return newPostgresEngine(), nil
	case KindNeo4j:
		return newNeo4jEngine(), nil
	case KindMongo:
		return newMongoEngine(), nil
	default:
		return nil, fmt.Errorf("engine: unknown kind %q", kind)
	}
}
