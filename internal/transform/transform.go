// Package transform implements the transform dispatcher (C7): a registry
// of pluggable query-language drivers invoked over a fired window's
// trains, with inputs bound to positional placeholders $1..$k.
package transform

import (
	"fmt"

	"github.com/data-tracks/DataTracks/internal/train"
)

// ErrTransformError reports a driver failure, spec.md's
// TransformError{line_id, reason}.
type ErrTransformError struct {
	LineID uint32
	Reason string
}

func (e *ErrTransformError) Error() string {
	return fmt.Sprintf("transform: line %d: %s", e.LineID, e.Reason)
}

// Query is a compiled, ready-to-evaluate transform. Compiling once and
// running many times keeps drivers deterministic given identical inputs,
// per spec.md §4.6's replay-soundness requirement.
type Query interface {
	// Run evaluates the query against one input train's wagons (bound to
	// $1..$k by position), returning zero or more output trains.
	Run(lineID uint32, in *train.Train) ([]*train.Train, error)
}

// Driver compiles a query string into a reusable Query.
type Driver interface {
	Compile(query string) (Query, error)
}

// Registry is a name-keyed driver registry, switched by TransformSpec.Language
// the way internal/metricdata/metricdata.go switches MetricDataRepository by kind.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds a Registry with the built-in "sql" driver registered.
func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[string]Driver)}
	r.Register("sql", NewSQLDriver())
	return r
}

// Register adds or replaces the driver for language.
func (r *Registry) Register(language string, d Driver) {
	r.drivers[language] = d
}

// Compile looks up the driver for language and compiles query.
func (r *Registry) Compile(language, query string) (Query, error) {
	d, ok := r.drivers[language]
	if !ok {
		return nil, fmt.Errorf("transform: unknown language driver %q", language)
	}
	return d.Compile(query)
}

// Dispatcher runs a compiled Query against the trains accumulated in a
// fired window, per the Station runtime's transform step (C5).
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher builds a Dispatcher backed by registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{registry: registry}
}

// Run compiles language/query once and applies it to every input train,
// concatenating the resulting output trains in input order.
func (d *Dispatcher) Run(lineID uint32, language, query string, inputs []*train.Train) ([]*train.Train, error) {
	q, err := d.registry.Compile(language, query)
	if err != nil {
		return nil, &ErrTransformError{LineID: lineID, Reason: err.Error()}
	}
	var out []*train.Train
	for _, in := range inputs {
		res, err := q.Run(lineID, in)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}
