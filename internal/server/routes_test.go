package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/data-tracks/DataTracks/internal/telemetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := telemetry.New(prometheus.NewRegistry())
	return New(":0", NewPlanRegistry(t.TempDir()), bus, prometheus.NewRegistry(), nil)
}

func TestHandleCreatePlanThenListPlans(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(createPlanRequest{Name: "p", Plan: basicSpec()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/plans/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Plans []planSummary `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Plans, 1)
	require.Equal(t, "p", listing.Plans[0].Name)
}

func TestHandleCreatePlanRejectsInvalidTopology(t *testing.T) {
	s := newTestServer(t)

	spec := basicSpec()
	spec.Lines[0].To = 99
	body, err := json.Marshal(createPlanRequest{Name: "p", Plan: spec})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/plans/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreatePlanRequiresName(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(createPlanRequest{Plan: basicSpec()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/plans/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOnPlanCreatedHookFires(t *testing.T) {
	s := newTestServer(t)

	var gotName string
	var gotPlan *plan.Plan
	s.OnPlanCreated(func(name string, p *plan.Plan) {
		gotName = name
		gotPlan = p
	})

	body, err := json.Marshal(createPlanRequest{Name: "p", Plan: basicSpec()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/plans/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, "p", gotName)
	require.NotNil(t, gotPlan)
}
