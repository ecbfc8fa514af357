package telemetry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/data-tracks/DataTracks/internal/telemetry"
)

func TestRateEWMAConvergesTowardSteadyRate(t *testing.T) {
	ewma := telemetry.NewRateEWMA(time.Second)
	start := time.Now()

	ewma.Observe(start, 0) // seed
	for i := 1; i <= 60; i++ {
		ewma.Observe(start.Add(time.Duration(i)*100*time.Millisecond), 10) // 100 records/s
	}

	require.InDelta(t, 100.0, ewma.Rate(), 15.0)
}

func TestRateEWMAIgnoresNonPositiveDelta(t *testing.T) {
	ewma := telemetry.NewRateEWMA(time.Second)
	now := time.Now()
	ewma.Observe(now, 0)
	ewma.Observe(now, 5) // same instant, dt == 0
	require.Equal(t, 0.0, ewma.Rate())
}
