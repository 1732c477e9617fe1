// Package fusion drives the tick loop: it keeps the latest reading from
// every source, builds one snapshot per tick, smooths it, derives the
// device kinematics and runs the Kalman estimator over the result.
package fusion

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/filter/iir"
	"github.com/banshee-data/motion.fusion/internal/filter/kalman"
	"github.com/banshee-data/motion.fusion/internal/geodesy"
	"github.com/banshee-data/motion.fusion/internal/ingest"
	"github.com/banshee-data/motion.fusion/internal/kinematics"
	"github.com/banshee-data/motion.fusion/internal/monitoring"
	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

var logf = monitoring.Prefixed("fusion")

// intervalHysteresis is the relative change in the derived tick interval
// needed before Run resets its ticker.
const intervalHysteresis = 0.1

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// State is the immutable result of one tick.
type State struct {
	Tick      uint64
	Timestamp time.Time

	Raw      *snapshot.Snapshot
	Smoothed *snapshot.Snapshot // nil when smoothing is disabled

	// Kinematics is derived from the smoothed snapshot when smoothing is
	// enabled, otherwise from the raw one.
	Kinematics *kinematics.DeviceKinematics

	Estimate    kalman.State
	EstimateErr error
}

// Ready reports whether a real sample has arrived since listening began.
func (s *State) Ready() bool { return s.Raw.IsReady() }

// Converged reports whether every derivative used by the motion model is
// available.
func (s *State) Converged() bool { return s.Kinematics.Ready() }

// Pipeline owns the snapshot chain, smoother and estimator. All methods
// are safe for concurrent use; ticks are serialised.
type Pipeline struct {
	opts Options

	mu        sync.Mutex
	listening bool
	latest    map[ingest.Source]ingest.Reading
	rates     rateTable
	geo       geodesy.Tracker
	current   *snapshot.Snapshot
	smoother  *iir.Filter
	estimator *kalman.Filter
	tick      uint64
	state     *State

	subMu       sync.Mutex
	subscribers map[string]chan *State
}

// New builds a stopped pipeline.
func New(opts Options) (*Pipeline, error) {
	opts = opts.withDefaults()
	est, err := kalman.NewKinematic(opts.TickInterval.Seconds(), opts.ProcessNoise, opts.ObservationNoise, opts.InitialVariance)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		opts:        opts,
		latest:      make(map[ingest.Source]ingest.Reading),
		rates:       make(rateTable),
		current:     snapshot.Initial(),
		smoother:    iir.New(iir.Config{SampleInterval: opts.TickInterval, CutoffHz: opts.CutoffHz}),
		estimator:   est,
		subscribers: make(map[string]chan *State),
	}, nil
}

// Submit records r as the latest reading of its source. Readings are
// dropped while not listening. A zero timestamp is replaced by the
// pipeline clock.
func (p *Pipeline) Submit(r ingest.Reading) {
	if !r.Source.Valid() {
		logf("dropping reading from unknown source %q", r.Source)
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = p.opts.Clock.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.listening {
		return
	}
	p.rates.observe(r.Source, r.Timestamp)
	if p.opts.GeodeticDisplacement {
		r = p.displace(r)
	}
	p.latest[r.Source] = r
}

// displace rewrites a latitude/longitude/altitude position into metres
// from the first fix.
func (p *Pipeline) displace(r ingest.Reading) ingest.Reading {
	pos, ok := r.Position()
	if !ok {
		return r
	}
	lat, okLat := pos["latitude"]
	lon, okLon := pos["longitude"]
	if !okLat || !okLon {
		return r
	}
	d := p.geo.Displace(geodesy.Fix{Latitude: lat, Longitude: lon, Altitude: pos["altitude"]})

	qs := make(map[string]quantity.Raw, len(r.Quantities))
	for k, v := range r.Quantities {
		qs[k] = v
	}
	disp := quantity.Raw{"x": d.East, "y": d.North}
	if _, ok := pos["altitude"]; ok {
		disp["z"] = d.Up
	}
	qs[snapshot.Position] = disp
	r.Quantities = qs
	return r
}

// StartListening begins a fresh, uninitialized chain. It is a no-op when
// already listening.
func (p *Pipeline) StartListening() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listening {
		return
	}
	p.resetLocked()
	p.listening = true
	p.smoother.Start()
	logf("listening")
}

// StopListening halts ticks and clears all accumulated state.
func (p *Pipeline) StopListening() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.listening {
		return
	}
	p.listening = false
	p.resetLocked()
	p.smoother.Stop()
	logf("stopped listening after %d ticks", p.tick)
}

func (p *Pipeline) resetLocked() {
	p.latest = make(map[ingest.Source]ingest.Reading)
	p.rates = make(rateTable)
	p.geo.Reset()
	p.current = snapshot.Initial()
	p.estimator.Reset()
	p.state = nil
}

// Listening reports whether readings are accepted and ticks run.
func (p *Pipeline) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listening
}

// ResetEstimator restores the Kalman filter to its initial state.
func (p *Pipeline) ResetEstimator() {
	p.estimator.Reset()
}

// RefreshRates returns the observed refresh rate of each source in Hz.
func (p *Pipeline) RefreshRates() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rates.snapshot()
}

// TickInterval is derived from the fastest source, falling back to the
// configured interval before any rate is known.
func (p *Pipeline) TickInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickIntervalLocked()
}

func (p *Pipeline) tickIntervalLocked() time.Duration {
	if d, ok := iir.SampleIntervalFromRates(p.rates.snapshot()); ok {
		return d
	}
	return p.opts.TickInterval
}

// Latest returns the most recent state, or nil before the first tick.
func (p *Pipeline) Latest() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Tick runs one fusion step at ts. It returns false without doing any
// work while not listening.
func (p *Pipeline) Tick(ts time.Time) (*State, bool) {
	p.mu.Lock()
	if !p.listening {
		p.mu.Unlock()
		return nil, false
	}

	raw := make(map[string]quantity.Raw)
	for _, r := range p.latest {
		for name, q := range r.Quantities {
			raw[name] = q
		}
	}
	snap := snapshot.Next(p.current, raw, ts, snapshot.WithDescriptors(p.opts.Descriptors))
	p.current = snap
	p.tick++

	st := &State{Tick: p.tick, Timestamp: ts, Raw: snap}
	input := snap
	if p.opts.Smoothing {
		p.smoother.SetSampleInterval(p.tickIntervalLocked())
		st.Smoothed, _ = p.smoother.Update(snap)
		input = st.Smoothed
	}
	st.Kinematics = kinematics.New(input)

	if st.Kinematics.Ready() {
		if err := p.estimate(st.Kinematics); err != nil {
			st.EstimateErr = err
			logf("tick %d: estimator: %v", p.tick, err)
		}
	}
	st.Estimate = p.estimator.State()
	p.state = st
	p.mu.Unlock()

	p.publish(st)
	return st, true
}

func (p *Pipeline) estimate(k *kinematics.DeviceKinematics) error {
	stm, err := k.StateTransitionMatrix()
	if err != nil {
		return err
	}
	_, err = p.estimator.UpdateWithTransition(stm, k.StateVector())
	return err
}

// Run ticks until ctx is cancelled, following changes in the fastest
// source rate.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := p.TickInterval()
	ticker := p.opts.Clock.NewTicker(interval)
	defer ticker.Stop()
	logf("ticking every %v", interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C():
			p.Tick(ts)
			if next := p.TickInterval(); intervalChanged(interval, next) {
				logf("tick interval %v -> %v", interval, next)
				interval = next
				ticker.Reset(next)
			}
		}
	}
}

func intervalChanged(old, next time.Duration) bool {
	if old <= 0 {
		return next > 0
	}
	return math.Abs(float64(next-old))/float64(old) > intervalHysteresis
}

// Subscribe returns a channel receiving every subsequent state. Slow
// subscribers miss states rather than stall the tick loop.
func (p *Pipeline) Subscribe() (string, <-chan *State) {
	id := uuid.NewString()
	ch := make(chan *State, subscriberBuffer)
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscription.
func (p *Pipeline) Unsubscribe(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

func (p *Pipeline) publish(st *State) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- st:
		default:
		}
	}
}

// Close ends every subscription.
func (p *Pipeline) Close() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
