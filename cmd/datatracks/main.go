// Command datatracks runs the streaming dataflow engine: it loads a
// config file and an optional startup plan, then brings up the WAL,
// offset store, engine persister pool, telemetry bus, dashboard server,
// and every station/ingress/egress goroutine the plan describes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/data-tracks/DataTracks/internal/config"
	"github.com/data-tracks/DataTracks/internal/deadletter"
	"github.com/data-tracks/DataTracks/internal/engine"
	"github.com/data-tracks/DataTracks/internal/maintenance"
	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/server"
	"github.com/data-tracks/DataTracks/internal/telemetry"
	"github.com/data-tracks/DataTracks/internal/wal"
	"github.com/data-tracks/DataTracks/pkg/log"
)

// Exit codes, spec.md §6.
const (
	exitClean       = 0
	exitBadConfig   = 2
	exitWalCorrupt  = 3
	exitFatalEngine = 4
)

const queueSampleEvery = time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.json", "path to the startup config file")
	logLevel := flag.String("loglevel", "info", "log verbosity: debug|info|notice|warn|err|crit")
	flag.Parse()

	log.SetLogLevel(*logLevel)

	if err := config.Init(*configPath); err != nil {
		log.Errorf("config: %v", err)
		return exitBadConfig
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	var (
		w        *wal.WAL
		offsets  *wal.OffsetStore
		dlq      *deadletter.Sink
		pool     *engine.Pool
		sched    *maintenance.Scheduler
		dash     *server.Server
		active   = map[string]*activation{}
		activeMu sync.Mutex
	)

	// Shutdown runs in strict reverse-dependency order regardless of which
	// return path got us here: stop accepting new work, cancel every
	// background task and wait (bounded by drain_timeout_ms) for it to
	// drain, then release the singletons later stages depend on.
	defer func() {
		if dash != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(config.Keys.DrainTimeoutMs)*time.Millisecond)
			dash.Shutdown(shutdownCtx)
			shutdownCancel()
		}

		cancel()
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Duration(config.Keys.DrainTimeoutMs) * time.Millisecond):
			log.Warn("drain timeout exceeded, forcing shutdown")
		}

		activeMu.Lock()
		for _, act := range active {
			_ = act.Close()
		}
		activeMu.Unlock()

		if sched != nil {
			sched.Shutdown()
		}
		if pool != nil {
			pool.Close()
		}
		if dlq != nil {
			dlq.Close()
		}
		if offsets != nil {
			offsets.Close()
		}
		if w != nil {
			w.Close()
		}
	}()

	var err error
	w, err = wal.Open(filepath.Join(config.Keys.DataDir, "wal"), config.Keys.WAL.MaxSegmentBytes, config.Keys.WAL.DelayRingSize)
	if err != nil {
		log.Errorf("wal: %v", err)
		return exitWalCorrupt
	}

	offsets, err = wal.OpenOffsetStore(filepath.Join(config.Keys.DataDir, "offsets.db"))
	if err != nil {
		log.Errorf("offsets: %v", err)
		return exitBadConfig
	}

	reg := prometheus.NewRegistry()
	bus := telemetry.New(reg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Run(ctx)
	}()

	dlq, err = deadletter.NewSink(filepath.Join(config.Keys.DataDir, "deadletter"))
	if err != nil {
		log.Errorf("deadletter: %v", err)
		return exitBadConfig
	}

	var engineRefs []maintenance.EngineRef
	pool, engineRefs, err = buildEnginePool(config.Keys.Engines, w, offsets, dlq, bus)
	if err != nil {
		log.Errorf("engine pool: %v", err)
		return exitFatalEngine
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
	}()

	sched, err = maintenance.New(filepath.Join(config.Keys.DataDir, "wal"), offsets, engineRefs, maintenance.Config{
		IntervalMinutes: config.Keys.Maintenance.RetentionIntervalMinutes,
		RetainSegments:  config.Keys.Maintenance.RetainSegments,
		ArchiveDir:      config.Keys.Maintenance.ArchiveDir,
	})
	if err != nil {
		log.Errorf("maintenance: %v", err)
		return exitBadConfig
	}
	if err := sched.Start(); err != nil {
		log.Errorf("maintenance: %v", err)
		return exitBadConfig
	}

	plans := server.NewPlanRegistry(config.Keys.DataDir)
	dash = server.New(config.Keys.Addr, plans, bus, reg, nil)

	activate := func(name string, p *plan.Plan) {
		act, err := activatePlan(ctx, &wg, p, activationDeps{wal: w, events: bus, channels: dash.Channels()})
		if err != nil {
			log.Errorf("activating plan %q: %v", name, err)
			return
		}
		sampleQueues(ctx, &wg, act.fabric, bus, queueSampleEvery)
		activeMu.Lock()
		active[name] = act
		activeMu.Unlock()
	}

	dash.OnPlanCreated(activate)

	if err := loadPersistedPlans(plans, activate); err != nil {
		log.Errorf("loading persisted plans: %v", err)
		return exitBadConfig
	}
	if config.Keys.PlanFile != "" {
		if err := loadPlanFile(config.Keys.PlanFile, plans, activate); err != nil {
			log.Errorf("loading plan file %q: %v", config.Keys.PlanFile, err)
			return exitBadConfig
		}
	}

	if err := dash.Start(); err != nil {
		log.Errorf("dashboard: %v", err)
		return exitBadConfig
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("shutting down")
	return exitClean
}

// buildEnginePool translates config-level engine bindings into
// internal/engine's Binding type and constructs the persister pool. A
// binding whose Init fails is a fatal engine init condition (exit 4).
func buildEnginePool(bindings []config.EngineBinding, w *wal.WAL, offsets *wal.OffsetStore, dlq *deadletter.Sink, bus *telemetry.Bus) (*engine.Pool, []maintenance.EngineRef, error) {
	engineBindings := make([]engine.Binding, 0, len(bindings))
	refs := make([]maintenance.EngineRef, 0, len(bindings))
	for _, b := range bindings {
		cfg, err := engine.DictFromJSON(b.Config)
		if err != nil {
			return nil, nil, fmt.Errorf("engine %d/%d: %w", b.EngineID, b.DefinitionID, err)
		}
		engineBindings = append(engineBindings, engine.Binding{
			EngineID:     b.EngineID,
			DefinitionID: b.DefinitionID,
			Kind:         b.Kind,
			Config:       cfg,
		})
		refs = append(refs, maintenance.EngineRef{EngineID: b.EngineID, DefinitionID: b.DefinitionID})
	}
	pool, err := engine.NewPool(engineBindings, w, offsets, dlq, bus, engine.PoolConfig{})
	if err != nil {
		return nil, nil, err
	}
	return pool, refs, nil
}

// loadPlanFile parses and validates the plan at path, registers it under
// its base name (without extension), and activates it.
func loadPlanFile(path string, plans *server.PlanRegistry, activate func(name string, p *plan.Plan)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	spec, err := plan.ParsePlanSpec(raw)
	if err != nil {
		return err
	}
	base := filepath.Base(path)
	name := base[:len(base)-len(filepath.Ext(base))]
	p, err := plans.Create(name, spec)
	if err != nil {
		return err
	}
	activate(name, p)
	return nil
}

// loadPersistedPlans activates every plan found under
// $DATA_DIR/plans/*.plan from a previous run, so a restart resumes the
// same topology without requiring the plan to be resubmitted.
func loadPersistedPlans(plans *server.PlanRegistry, activate func(name string, p *plan.Plan)) error {
	failures, err := plans.LoadAll()
	if err != nil {
		return err
	}
	for name, ferr := range failures {
		log.Errorf("plan %q failed validation and was skipped: %v", name, ferr)
	}
	for _, name := range plans.List() {
		p, ok := plans.Get(name)
		if !ok {
			continue
		}
		activate(name, p)
	}
	return nil
}
