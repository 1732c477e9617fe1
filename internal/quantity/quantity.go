package quantity

import (
	"maps"
	"math"
	"slices"

	"github.com/banshee-data/motion.fusion/internal/linalg"
	"github.com/banshee-data/motion.fusion/internal/units"
)

// Quantity is an immutable tick value of one kind. Once a previous tick
// is known it also carries its first derivative, whose own chain seeds
// second (and higher) derivatives across ticks.
type Quantity struct {
	desc       Descriptor
	values     [3]Value
	previous   *Quantity
	derivative *Quantity
	deltaT     float64
}

// New resolves current and previous raw samples for kind and computes the
// derivative over deltaT seconds. previousDerivative is the first
// derivative known at the previous tick, if any. A nil previous means the
// quantity is uninitialized.
func New(kind Kind, current, previous Raw, previousDerivative *Quantity, deltaT float64) *Quantity {
	return NewWithDescriptor(DescriptorFor(kind), current, previous, previousDerivative, deltaT)
}

// NewWithDescriptor is New with an explicit descriptor, used when the
// caller overrides component aliases.
func NewWithDescriptor(desc Descriptor, current, previous Raw, previousDerivative *Quantity, deltaT float64) *Quantity {
	var prev *Quantity
	if previous != nil {
		prev = &Quantity{desc: desc, values: desc.Parse(previous), derivative: previousDerivative.detached()}
	}
	return build(desc, desc.Parse(current), prev, deltaT)
}

// FromValues builds a quantity from canonical values. previous is the same
// quantity at the previous tick (its derivative seeds the chain).
func FromValues(kind Kind, values [3]Value, previous *Quantity, deltaT float64) *Quantity {
	return build(DescriptorFor(kind), values, previous, deltaT)
}

// Empty returns the uninitialized quantity of kind with its initial values.
func Empty(kind Kind) *Quantity {
	d := DescriptorFor(kind)
	return &Quantity{desc: d, values: d.Initial}
}

func build(desc Descriptor, values [3]Value, previous *Quantity, deltaT float64) *Quantity {
	q := &Quantity{desc: desc, values: values, deltaT: deltaT}
	if previous == nil {
		return q
	}
	q.previous = previous.detached()

	next, ok := desc.Kind.Derivative()
	if !ok || !validDeltaT(deltaT) {
		return q
	}
	var diff [3]Value
	for i := range values {
		if values[i].Valid && previous.values[i].Valid {
			d := values[i].Float - previous.values[i].Float
			if desc.Kind == Orientation {
				d = math.Remainder(d, 2*math.Pi)
			}
			diff[i] = Some(d / deltaT)
		}
	}
	q.derivative = build(DescriptorFor(next), diff, previous.derivative, deltaT)
	return q
}

func validDeltaT(dt float64) bool {
	return dt > 0 && !math.IsInf(dt, 0) && !math.IsNaN(dt)
}

// detached copies q without its previous link so history stays bounded to
// one tick per chain level.
func (q *Quantity) detached() *Quantity {
	if q == nil {
		return nil
	}
	return &Quantity{
		desc:       q.desc,
		values:     q.values,
		derivative: q.derivative.detached(),
		deltaT:     q.deltaT,
	}
}

// Parse resolves a raw sample into canonical component values. Canonical
// field names take precedence over aliases; among aliases of one
// component the first in name order wins.
func (d Descriptor) Parse(raw Raw) [3]Value {
	values := d.Initial
	if raw == nil {
		return values
	}
	set := func(i int, f float64) {
		if d.UseRadians {
			f = units.DegreesToRadians(f)
		}
		values[i] = Some(f)
	}
	var aliased [3]bool
	for _, field := range slices.Sorted(maps.Keys(raw)) {
		if d.componentIndex(field) >= 0 {
			continue
		}
		if i := d.resolve(field); i >= 0 && !aliased[i] {
			aliased[i] = true
			set(i, raw[field])
		}
	}
	for i, c := range d.Components {
		if f, ok := raw[c]; ok {
			set(i, f)
		}
	}
	return values
}

// Format converts canonical values back into a raw sample keyed by
// canonical component names. Angular kinds are held in radians, so they
// are converted back to degrees to round-trip through Parse.
func (d Descriptor) Format(values [3]Value) Raw {
	r := make(Raw, len(values))
	for i, v := range values {
		if !v.Valid {
			continue
		}
		f := v.Float
		if d.UseRadians {
			f = units.RadiansToDegrees(f)
		}
		r[d.Components[i]] = f
	}
	return r
}

// Descriptor returns the descriptor the quantity was parsed with.
func (q *Quantity) Descriptor() Descriptor { return q.desc }

// Kind returns the quantity's kind.
func (q *Quantity) Kind() Kind { return q.desc.Kind }

// Name returns the canonical name, e.g. "position".
func (q *Quantity) Name() string { return q.desc.Name }

// DerivativeName returns the name of the derivative quantity ("" for the
// end of a chain).
func (q *Quantity) DerivativeName() string { return q.desc.DerivativeName }

// Values returns the canonical component values.
func (q *Quantity) Values() [3]Value { return q.values }

// Get returns a component by canonical or alias name.
func (q *Quantity) Get(name string) (Value, bool) {
	i := q.desc.resolve(name)
	if i < 0 {
		return Value{}, false
	}
	return q.values[i], true
}

// Vector returns the components as a vector with absent components as zero.
func (q *Quantity) Vector() linalg.Vector3 {
	if q == nil {
		return linalg.Zero3
	}
	return linalg.NewVector3(q.values[0].Or(0), q.values[1].Or(0), q.values[2].Or(0))
}

// Complete reports whether every component is present.
func (q *Quantity) Complete() bool {
	if q == nil {
		return false
	}
	for _, v := range q.values {
		if !v.Valid {
			return false
		}
	}
	return true
}

// Initialized reports whether a previous tick is known.
func (q *Quantity) Initialized() bool { return q != nil && q.previous != nil }

// Previous returns the previous tick's value, or nil when uninitialized.
func (q *Quantity) Previous() *Quantity { return q.previous }

// Derivative returns the first time derivative, or nil when unavailable
// (no previous tick, a zero deltaT, or the end of the chain).
func (q *Quantity) Derivative() *Quantity {
	if q == nil {
		return nil
	}
	return q.derivative
}

// HasDerivative reports whether a derivative was computed this tick.
func (q *Quantity) HasDerivative() bool { return q != nil && q.derivative != nil }

// DeltaT is the elapsed time, in seconds, the derivative was taken over.
func (q *Quantity) DeltaT() float64 { return q.deltaT }

// Magnitude is the xyz norm. It is undefined (absent) for orientation
// and whenever a component is missing.
func (q *Quantity) Magnitude() Value {
	if q.desc.Kind == Orientation || !q.Complete() {
		return None()
	}
	return Some(q.Vector().Magnitude())
}

// PlanarMagnitude is the xy norm, with the same rules as Magnitude.
func (q *Quantity) PlanarMagnitude() Value {
	if q.desc.Kind == Orientation || !q.values[0].Valid || !q.values[1].Valid {
		return None()
	}
	return Some(math.Hypot(q.values[0].Float, q.values[1].Float))
}

// Equal reports whether both quantities have identical components; two
// absent components are equal.
func (q *Quantity) Equal(o *Quantity) bool {
	if q == nil || o == nil {
		return q == o
	}
	for i := range q.values {
		a, b := q.values[i], o.values[i]
		if a.Valid != b.Valid || (a.Valid && a.Float != b.Float) {
			return false
		}
	}
	return true
}
