package telemetry

import (
	"math"
	"time"
)

// RateEWMA tracks an exponentially-weighted moving average of records/s,
// the `throughput` shape spec.md §5 names for the `statistics` topic.
// Call Observe once per applied record (or batch) and Rate to read the
// current estimate.
type RateEWMA struct {
	halfLife time.Duration
	rate     float64
	last     time.Time
	started  bool
}

// NewRateEWMA builds a tracker with the given half-life: the window over
// which a burst's influence on Rate decays by half.
func NewRateEWMA(halfLife time.Duration) *RateEWMA {
	return &RateEWMA{halfLife: halfLife}
}

// Observe folds n records seen at instant now into the running rate.
func (r *RateEWMA) Observe(now time.Time, n int) {
	if !r.started {
		r.last = now
		r.started = true
		return
	}
	dt := now.Sub(r.last)
	r.last = now
	if dt <= 0 {
		return
	}
	instant := float64(n) / dt.Seconds()
	alpha := 1 - halfLifeDecay(dt, r.halfLife)
	r.rate = r.rate + alpha*(instant-r.rate)
}

// Rate returns the current records/s estimate.
func (r *RateEWMA) Rate() float64 { return r.rate }

func halfLifeDecay(dt, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 0
	}
	return math.Exp(-math.Ln2 * (dt.Seconds() / halfLife.Seconds()))
}
