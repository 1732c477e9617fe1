// Package iir implements a single-pole recursive low-pass filter over
// the snapshot stream.
package iir

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// DefaultCutoffHz is used when Config.CutoffHz is not positive.
const DefaultCutoffHz = 5.0

// Config fixes the sampling interval and cutoff frequency of the filter.
type Config struct {
	SampleInterval time.Duration
	CutoffHz       float64
}

// Alpha returns the smoothing factor Δt/(RC+Δt) with RC = 1/(2π fc).
// A non-positive sample interval yields 1, passing raw values through.
func (c Config) Alpha() float64 {
	dt := c.SampleInterval.Seconds()
	if dt <= 0 {
		return 1
	}
	fc := c.CutoffHz
	if fc <= 0 {
		fc = DefaultCutoffHz
	}
	rc := 1 / (2 * math.Pi * fc)
	return dt / (rc + dt)
}

// SampleIntervalFromRates derives the sampling interval from the fastest
// observed source refresh rate in Hz. It returns false when no rate is
// positive.
func SampleIntervalFromRates(rates map[string]float64) (time.Duration, bool) {
	max := 0.0
	for _, r := range rates {
		if r > max && !math.IsInf(r, 0) {
			max = r
		}
	}
	if max <= 0 {
		return 0, false
	}
	return time.Duration(float64(time.Second) / max), true
}

// Filter holds the single smoothed snapshot. It is safe for concurrent
// use, though the pipeline feeds it from one goroutine.
type Filter struct {
	mu        sync.Mutex
	cfg       Config
	listening bool
	state     *snapshot.Snapshot
}

// New returns a stopped filter.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg, state: snapshot.Initial()}
}

// Start begins accepting updates from a fresh, all-absent state.
func (f *Filter) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = true
	f.state = snapshot.Initial()
}

// Stop halts updates and discards the smoothed state.
func (f *Filter) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = false
	f.state = snapshot.Initial()
}

// Listening reports whether the filter accepts updates.
func (f *Filter) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

// SetSampleInterval changes the interval used for subsequent updates.
func (f *Filter) SetSampleInterval(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.SampleInterval = d
}

// Config returns the current configuration.
func (f *Filter) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// State returns the current smoothed snapshot.
func (f *Filter) State() *snapshot.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Update folds raw into the smoothed state and returns the new state.
// It returns false, leaving the state untouched, when not listening.
func (f *Filter) Update(raw *snapshot.Snapshot) (*snapshot.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.listening || raw == nil {
		return f.state, false
	}

	alpha := f.cfg.Alpha()
	prev := f.state
	next := make(map[string]quantity.Raw, len(raw.Names()))
	for _, name := range raw.Names() {
		q := raw.Get(name)
		var previous [3]quantity.Value
		if p := prev.Get(name); p != nil {
			previous = p.Values()
		}
		next[name] = q.Descriptor().Format(smooth(previous, q.Values(), alpha))
	}

	f.state = snapshot.Next(prev, next, raw.Timestamp())
	return f.state, true
}

func smooth(previous, raw [3]quantity.Value, alpha float64) [3]quantity.Value {
	var out [3]quantity.Value
	for i := range out {
		switch {
		case !raw[i].Valid:
			out[i] = previous[i]
		case !previous[i].Valid:
			out[i] = raw[i]
		default:
			out[i] = quantity.Some(previous[i].Float + alpha*(raw[i].Float-previous[i].Float))
		}
	}
	return out
}
