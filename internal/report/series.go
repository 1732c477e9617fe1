// Package report renders recorded runs as PNG plots and HTML charts.
package report

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// ErrNoTicks is returned when a run has nothing to draw.
var ErrNoTicks = errors.New("report: run has no ticks")

// stateOffsets locates each quantity's components in the 24-element state
// and estimate vectors.
var stateOffsets = map[string]int{
	snapshot.Position:        0,
	"velocity":               3,
	snapshot.Acceleration:    6,
	"jerk":                   9,
	snapshot.Orientation:     12,
	snapshot.AngularVelocity: 15,
	"angularAcceleration":    18,
	"angularJerk":            21,
}

// Axes are the component labels, in order.
var Axes = [3]string{"x", "y", "z"}

// Series holds one quantity's components over a run. Absent samples are
// nil so gaps survive into the charts.
type Series struct {
	Quantity string
	// Seconds since the first tick.
	Times    []float64
	Raw      [3][]*float64
	Smoothed [3][]*float64
	Estimate [3][]*float64
}

var quantityOrder = []string{
	snapshot.Position, "velocity", snapshot.Acceleration, "jerk",
	snapshot.Orientation, snapshot.AngularVelocity, "angularAcceleration", "angularJerk",
}

// Quantities lists the names a Series can be built for.
func Quantities() []string {
	return append([]string(nil), quantityOrder...)
}

// SeriesOf extracts quantity from ticks. Raw and smoothed samples exist
// only for the directly measured quantities; estimates exist for every
// quantity once the run converged.
func SeriesOf(ticks []db.TickRecord, quantity string) (Series, error) {
	offset, ok := stateOffsets[quantity]
	if !ok {
		return Series{}, fmt.Errorf("report: unknown quantity %q", quantity)
	}
	if len(ticks) == 0 {
		return Series{}, ErrNoTicks
	}

	s := Series{Quantity: quantity, Times: make([]float64, len(ticks))}
	start := ticks[0].Timestamp
	for i, t := range ticks {
		s.Times[i] = t.Timestamp.Sub(start).Seconds()
		raw, smoothed := t.Raw[quantity], t.Smoothed[quantity]
		for axis := range Axes {
			s.Raw[axis] = append(s.Raw[axis], raw[axis])
			s.Smoothed[axis] = append(s.Smoothed[axis], smoothed[axis])

			var est *float64
			if len(t.Estimate) >= offset+3 {
				v := t.Estimate[offset+axis]
				est = &v
			}
			s.Estimate[axis] = append(s.Estimate[axis], est)
		}
	}
	return s, nil
}

func present(vs []*float64) bool {
	for _, v := range vs {
		if v != nil {
			return true
		}
	}
	return false
}

// Empty reports whether no component has a single sample.
func (s Series) Empty() bool {
	for axis := range Axes {
		if present(s.Raw[axis]) || present(s.Smoothed[axis]) || present(s.Estimate[axis]) {
			return false
		}
	}
	return true
}
