package server

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/stretchr/testify/require"
)

// writePlanFile drops a raw plan spec straight into dataDir/plans, bypassing
// Create's validation, so LoadAll has something invalid to find.
func writePlanFile(dataDir, name string, spec plan.PlanSpec) error {
	dir := filepath.Join(dataDir, "plans")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".plan"), raw, 0o644)
}

func basicSpec() plan.PlanSpec {
	return plan.PlanSpec{
		Name: "p",
		Stations: []plan.StationSpec{
			{ID: 1, Sources: []plan.IngressBinding{{URI: "NATS{subject=in}"}}},
			{ID: 2, Sinks: []plan.EgressBinding{{URI: "NATS{subject=out}"}}},
		},
		Lines: []plan.LineSpec{
			{ID: 10, From: 1, To: 2, Capacity: 4},
		},
	}
}

func TestPlanRegistryCreateAndList(t *testing.T) {
	r := NewPlanRegistry(t.TempDir())

	_, err := r.Create("p", basicSpec())
	require.NoError(t, err)

	require.Equal(t, []string{"p"}, r.List())

	p, ok := r.Get("p")
	require.True(t, ok)
	require.Len(t, p.Stations(), 2)
}

func TestPlanRegistryCreateRejectsInvalidTopology(t *testing.T) {
	r := NewPlanRegistry(t.TempDir())
	spec := basicSpec()
	spec.Lines[0].To = 99

	_, err := r.Create("p", spec)
	require.Error(t, err)
	require.Empty(t, r.List())
}

func TestPlanRegistryPersistsPlanFile(t *testing.T) {
	dir := t.TempDir()
	r := NewPlanRegistry(dir)

	_, err := r.Create("p", basicSpec())
	require.NoError(t, err)

	require.FileExists(t, dir+"/plans/p.plan")
}

func TestPlanRegistryLoadAllResumesAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	first := NewPlanRegistry(dir)
	_, err := first.Create("p", basicSpec())
	require.NoError(t, err)

	second := NewPlanRegistry(dir)
	require.Empty(t, second.List())

	failures, err := second.LoadAll()
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Equal(t, []string{"p"}, second.List())
}

func TestPlanRegistryLoadAllReportsInvalidPlansWithoutAbortingScan(t *testing.T) {
	dir := t.TempDir()

	good := NewPlanRegistry(dir)
	_, err := good.Create("good", basicSpec())
	require.NoError(t, err)

	bad := basicSpec()
	bad.Lines[0].To = 99
	require.NoError(t, writePlanFile(dir, "bad", bad))

	r := NewPlanRegistry(dir)
	failures, err := r.LoadAll()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Contains(t, failures, "bad")
	require.Equal(t, []string{"good"}, r.List())
}

func TestPlanRegistryLoadAllOnMissingDirectoryIsNoop(t *testing.T) {
	r := NewPlanRegistry(t.TempDir())
	failures, err := r.LoadAll()
	require.NoError(t, err)
	require.Nil(t, failures)
	require.Empty(t, r.List())
}
