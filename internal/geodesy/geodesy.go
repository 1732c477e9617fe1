// Package geodesy converts geodetic fixes into local east/north/up
// displacements from an origin fix.
package geodesy

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Fix is a geodetic position in degrees and metres above the ellipsoid.
type Fix struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Point returns the fix as an orb point (longitude first).
func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// Displacement is a local tangent-plane offset in metres.
type Displacement struct {
	East  float64
	North float64
	Up    float64
}

// Between returns the displacement of fix from origin. Horizontal
// components come from the great-circle distance and initial bearing,
// which is accurate for the short baselines of a moving handset.
func Between(origin, fix Fix) Displacement {
	d := geo.DistanceHaversine(origin.Point(), fix.Point())
	bearing := geo.Bearing(origin.Point(), fix.Point()) * math.Pi / 180
	return Displacement{
		East:  d * math.Sin(bearing),
		North: d * math.Cos(bearing),
		Up:    fix.Altitude - origin.Altitude,
	}
}

// Tracker anchors displacements to the first fix it sees.
type Tracker struct {
	origin *Fix
}

// Origin returns the anchoring fix, if any.
func (t *Tracker) Origin() (Fix, bool) {
	if t.origin == nil {
		return Fix{}, false
	}
	return *t.origin, true
}

// Displace returns fix relative to the origin, adopting fix as the
// origin when none is set.
func (t *Tracker) Displace(fix Fix) Displacement {
	if t.origin == nil {
		o := fix
		t.origin = &o
	}
	return Between(*t.origin, fix)
}

// Reset forgets the origin.
func (t *Tracker) Reset() { t.origin = nil }
