package engine

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
	"github.com/data-tracks/DataTracks/internal/wal"
)

// EventSink mirrors station.EventSink's shape; the telemetry bus's single
// concrete publisher satisfies both without either package importing the
// other.
type EventSink interface {
	PublishEvent(kind string, fields map[string]interface{})
}

// DeadLetterSink receives trains an engine has fatally rejected.
type DeadLetterSink interface {
	RouteDeadLetter(engineID uint16, t *train.Train, reason string)
}

// PoolConfig tunes worker polling and retry/backoff, spec.md §4.8.
type PoolConfig struct {
	PollInterval time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxAttempts  int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	return c
}

// Pool is the engine persister pool (C9): one worker per (engine_id,
// definition_id), each pulling from the WAL starting at its stored
// applied_lsn+1 and applying records in strict lsn order, the way the
// teacher's MetricDataRepository kind-switch backs one repository per
// configured backend.
type Pool struct {
	workers []*worker
}

// NewPool constructs and Inits one Engine per binding. A binding whose Init
// fails is a fatal engine init condition (spec.md §6 exit code 4); the
// caller decides whether to abort startup.
func NewPool(bindings []Binding, w *wal.WAL, offsets *wal.OffsetStore, deadLetter DeadLetterSink, events EventSink, cfg PoolConfig) (*Pool, error) {
	cfg = cfg.withDefaults()
	workers := make([]*worker, 0, len(bindings))
	for _, b := range bindings {
		eng, err := New(b.Kind)
		if err != nil {
			return nil, err
		}
		if err := eng.Init(context.Background(), b.Config); err != nil {
			return nil, &ErrEngineFatal{EngineID: b.EngineID, Reason: err.Error()}
		}
		workers = append(workers, &worker{
			binding:    b,
			engine:     eng,
			wal:        w,
			offsets:    offsets,
			deadLetter: deadLetter,
			events:     events,
			cfg:        cfg,
		})
	}
	return &Pool{workers: workers}, nil
}

// Run starts every worker's polling loop, returning once ctx is cancelled
// and all workers have exited.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go w.run(ctx, &wg)
	}
	wg.Wait()
}

// Close releases every engine's resources. Call after Run returns.
func (p *Pool) Close() error {
	var first error
	for _, w := range p.workers {
		if err := w.engine.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type worker struct {
	binding    Binding
	engine     Engine
	wal        *wal.WAL
	offsets    *wal.OffsetStore
	deadLetter DeadLetterSink
	events     EventSink
	cfg        PoolConfig
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain applies every record from applied_lsn+1 onward, in strict
// ascending lsn order, stopping at the first record that cannot be
// applied within the retry budget (spec.md §4.8's per-engine ordering
// guarantee: later records never apply before an earlier, still-failing one).
func (w *worker) drain(ctx context.Context) {
	applied, ok, err := w.offsets.Get(w.binding.EngineID, w.binding.DefinitionID)
	if err != nil {
		return
	}
	fromLSN := uint64(0)
	if ok {
		fromLSN = applied + 1
	}

	records, err := w.wal.Scan(fromLSN)
	if err != nil {
		return
	}
	for _, rec := range records {
		if rec.LSN < fromLSN {
			continue
		}
		t, derr := train.Decode(rec.Payload)
		if derr != nil {
			w.publishEvent("wal_decode_error", map[string]interface{}{
				"engine_id": w.binding.EngineID, "lsn": rec.LSN, "reason": derr.Error(),
			})
			continue
		}
		if !w.applyWithRetry(ctx, rec, t) {
			return // degraded: stop, retry this same record on the next tick
		}
	}
}

// applyWithRetry applies one record, retrying transient failures with
// exponential backoff up to cfg.MaxAttempts. A fatal error routes the
// train to the dead-letter sink and still acks (poison isolation). Returns
// false if the retry budget was exhausted without success (degraded).
func (w *worker) applyWithRetry(ctx context.Context, rec wal.Record, t *train.Train) bool {
	wagons := wagonMaps(t)
	backoff := w.cfg.BaseBackoff

	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		err := w.engine.Apply(ctx, rec.StationID, wagons)
		if err == nil {
			if ackErr := w.offsets.Ack(w.binding.EngineID, w.binding.DefinitionID, rec.LSN); ackErr != nil {
				return false
			}
			return true
		}

		if fatal, ok := err.(*ErrEngineFatal); ok {
			fatal.EngineID = w.binding.EngineID
			if w.deadLetter != nil {
				w.deadLetter.RouteDeadLetter(w.binding.EngineID, t, fatal.Reason)
			}
			w.publishEvent("engine_fatal", map[string]interface{}{
				"engine_id": w.binding.EngineID, "lsn": rec.LSN, "reason": fatal.Reason,
			})
			if ackErr := w.offsets.Ack(w.binding.EngineID, w.binding.DefinitionID, rec.LSN); ackErr != nil {
				return false
			}
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(jitter(backoff)):
		}
		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}

	w.publishEvent("engine_degraded", map[string]interface{}{
		"engine_id": w.binding.EngineID, "lsn": rec.LSN,
	})
	return false
}

func (w *worker) publishEvent(kind string, fields map[string]interface{}) {
	if w.events != nil {
		w.events.PublishEvent(kind, fields)
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
}

// wagonMaps converts a train's wagons into the line-id-keyed field maps the
// Engine interface consumes, line ids rendered as decimal text column/field
// names (mirroring internal/train/codec.go's wire representation).
func wagonMaps(t *train.Train) []map[string]value.Value {
	wagons := t.Wagons()
	out := make([]map[string]value.Value, len(wagons))
	for i, w := range wagons {
		m := make(map[string]value.Value, w.Len())
		for _, lineID := range w.LineIDs() {
			v, _ := w.ByLine(lineID)
			m[strconv.FormatUint(uint64(lineID), 10)] = v
		}
		out[i] = m
	}
	return out
}
