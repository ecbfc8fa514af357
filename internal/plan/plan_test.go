package plan_test

import (
	"testing"

	"github.com/data-tracks/DataTracks/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func TestValidateAcceptsConnectedPlan(t *testing.T) {
	p, err := plan.Validate(basicSpec())
	require.NoError(t, err)
	require.Len(t, p.Stations(), 2)
	require.Len(t, p.Lines(), 1)

	s1, ok := p.Station(1)
	require.True(t, ok)
	assert.Equal(t, []uint32{10}, s1.Outgoing())

	s2, ok := p.Station(2)
	require.True(t, ok)
	assert.Equal(t, []uint32{10}, s2.Incoming())
}

func TestValidateRejectsDuplicateStationID(t *testing.T) {
	s := basicSpec()
	s.Stations = append(s.Stations, plan.StationSpec{ID: 1})
	_, err := plan.Validate(s)
	require.Error(t, err)
	var pi *plan.ErrPlanInvalid
	require.ErrorAs(t, err, &pi)
}

func TestValidateRejectsUnresolvedLineEndpoint(t *testing.T) {
	s := basicSpec()
	s.Lines[0].To = 99
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateRejectsCycle(t *testing.T) {
	s := basicSpec()
	s.Lines = append(s.Lines, plan.LineSpec{ID: 11, From: 2, To: 1, Capacity: 1})
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateRequiresIngressOutgoingLine(t *testing.T) {
	s := plan.PlanSpec{
		Stations: []plan.StationSpec{
			{ID: 1, Sources: []plan.IngressBinding{{URI: "NATS{subject=in}"}}},
			{ID: 2, Sinks: []plan.EgressBinding{{URI: "NATS{subject=out}"}}},
		},
		Lines: nil,
	}
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateRequiresAtLeastOneIngressAndEgress(t *testing.T) {
	s := plan.PlanSpec{
		Stations: []plan.StationSpec{{ID: 1}, {ID: 2}},
		Lines:    []plan.LineSpec{{ID: 10, From: 1, To: 2, Capacity: 1}},
	}
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateRejectsDisconnectedPlan(t *testing.T) {
	s := basicSpec()
	s.Stations = append(s.Stations,
		plan.StationSpec{ID: 3, Sources: []plan.IngressBinding{{URI: "NATS{subject=in2}"}}},
		plan.StationSpec{ID: 4, Sinks: []plan.EgressBinding{{URI: "NATS{subject=out2}"}}},
	)
	s.Lines = append(s.Lines, plan.LineSpec{ID: 11, From: 3, To: 4, Capacity: 1})
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateResolvesNamedTransform(t *testing.T) {
	s := basicSpec()
	s.Transforms = map[string]plan.TransformSpec{
		"shared": {Language: "sql", Query: "SELECT $1 FROM $1"},
	}
	s.Stations[1].TransformRef = "shared"
	p, err := plan.Validate(s)
	require.NoError(t, err)
	st, ok := p.Station(2)
	require.True(t, ok)
	require.NotNil(t, st.Transform)
	assert.Equal(t, "sql", st.Transform.Language)
}

func TestValidateRejectsUnknownTransformRef(t *testing.T) {
	s := basicSpec()
	s.Stations[1].TransformRef = "missing"
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestValidateRejectsPlaceholderExceedingFeedingLines(t *testing.T) {
	s := basicSpec()
	s.Stations[1].Transform = &plan.TransformSpec{Language: "sql", Query: "SELECT $2 FROM $2"}
	_, err := plan.Validate(s)
	require.Error(t, err)
}

func TestParsePlanSpecRejectsMalformedJSON(t *testing.T) {
	_, err := plan.ParsePlanSpec([]byte("{not json"))
	require.Error(t, err)
}
