package fusion

import (
	"math"
	"time"

	"github.com/banshee-data/motion.fusion/internal/ingest"
)

// rateSmoothing is the weight of the newest inter-arrival time.
const rateSmoothing = 0.2

// rateTracker estimates a source's refresh rate from an exponential
// moving average of inter-arrival times.
type rateTracker struct {
	last     time.Time
	interval time.Duration
}

func (t *rateTracker) observe(ts time.Time) {
	if !t.last.IsZero() && ts.After(t.last) {
		dt := ts.Sub(t.last)
		if t.interval == 0 {
			t.interval = dt
		} else {
			t.interval = time.Duration(math.Round(rateSmoothing*float64(dt) + (1-rateSmoothing)*float64(t.interval)))
		}
	}
	if ts.After(t.last) {
		t.last = ts
	}
}

// hz returns the estimated rate, or 0 before two samples.
func (t *rateTracker) hz() float64 {
	if t.interval <= 0 {
		return 0
	}
	return float64(time.Second) / float64(t.interval)
}

type rateTable map[ingest.Source]*rateTracker

func (rt rateTable) observe(s ingest.Source, ts time.Time) {
	t, ok := rt[s]
	if !ok {
		t = &rateTracker{}
		rt[s] = t
	}
	t.observe(ts)
}

func (rt rateTable) snapshot() map[string]float64 {
	out := make(map[string]float64, len(rt))
	for s, t := range rt {
		out[string(s)] = t.hz()
	}
	return out
}
