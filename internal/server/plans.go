package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/data-tracks/DataTracks/internal/plan"
)

// PlanRegistry holds every validated plan currently known to the running
// process, persisting new ones under dataDir/plans/*.plan (spec.md §6's
// file layout) so they survive a restart.
type PlanRegistry struct {
	mu      sync.RWMutex
	dataDir string
	entries map[string]*plan.Plan
}

// NewPlanRegistry builds a registry rooted at dataDir. dataDir/plans is
// created on first Create call if missing.
func NewPlanRegistry(dataDir string) *PlanRegistry {
	return &PlanRegistry{dataDir: dataDir, entries: make(map[string]*plan.Plan)}
}

// List returns every registered plan's name in sorted order.
func (r *PlanRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a registered plan by name.
func (r *PlanRegistry) Get(name string) (*plan.Plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[name]
	return p, ok
}

// Create validates spec, registers it under name, and persists the raw
// plan JSON to dataDir/plans/<name>.plan. A validation failure registers
// nothing and returns the *plan.ErrPlanInvalid as-is.
func (r *PlanRegistry) Create(name string, spec plan.PlanSpec) (*plan.Plan, error) {
	p, err := plan.Validate(spec)
	if err != nil {
		return nil, err
	}

	if r.dataDir != "" {
		dir := filepath.Join(r.dataDir, "plans")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("server: persist plan %q: %w", name, err)
		}
		raw, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("server: marshal plan %q: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".plan"), raw, 0o644); err != nil {
			return nil, fmt.Errorf("server: persist plan %q: %w", name, err)
		}
	}

	r.mu.Lock()
	r.entries[name] = p
	r.mu.Unlock()
	return p, nil
}

// LoadAll reads every dataDir/plans/*.plan file from a previous run,
// validates it, and registers it under its file name (without
// extension). Plans already failing validation are skipped with an
// error rather than aborting the rest of the directory.
func (r *PlanRegistry) LoadAll() (map[string]error, error) {
	if r.dataDir == "" {
		return nil, nil
	}
	dir := filepath.Join(r.dataDir, "plans")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("server: reading %s: %w", dir, err)
	}

	failures := map[string]error{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".plan") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".plan")
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			failures[name] = err
			continue
		}
		var spec plan.PlanSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			failures[name] = err
			continue
		}
		p, err := plan.Validate(spec)
		if err != nil {
			failures[name] = err
			continue
		}
		r.mu.Lock()
		r.entries[name] = p
		r.mu.Unlock()
	}
	return failures, nil
}
