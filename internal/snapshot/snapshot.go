// Package snapshot bundles the per-tick differentiable quantities into a
// single immutable, timestamped view of the sensor state.
package snapshot

import (
	"sort"
	"time"

	"github.com/banshee-data/motion.fusion/internal/quantity"
)

// Conventional quantity names fed from the acquisition layer.
const (
	Position        = "position"
	Acceleration    = "acceleration"
	Orientation     = "orientation"
	AngularVelocity = "angularVelocity"
)

// Names lists the raw quantities captured each tick.
var Names = []string{Position, Acceleration, Orientation, AngularVelocity}

// Snapshot is the sensor state at one tick. It never changes after
// construction; each tick produces a new Snapshot.
type Snapshot struct {
	timestamp         time.Time
	previousTimestamp time.Time
	quantities        map[string]*quantity.Quantity
	raw               map[string]quantity.Raw
	descriptors       map[string]quantity.Descriptor
}

// Option customises snapshot construction.
type Option func(*Snapshot)

// WithDescriptors overrides the descriptor used for named quantities,
// typically to extend component aliases from configuration.
func WithDescriptors(d map[string]quantity.Descriptor) Option {
	return func(s *Snapshot) {
		for name, desc := range d {
			s.descriptors[name] = desc
		}
	}
}

// New builds a snapshot from raw samples. previousRaw and
// previousDerivatives come from the previous tick and may be nil; names
// without a matching previous sample start uninitialized. Unknown
// quantity names are ignored.
func New(
	raw map[string]quantity.Raw,
	previousRaw map[string]quantity.Raw,
	previousDerivatives map[string]*quantity.Quantity,
	timestamp, previousTimestamp time.Time,
	opts ...Option,
) *Snapshot {
	s := &Snapshot{
		timestamp:         timestamp,
		previousTimestamp: previousTimestamp,
		quantities:        make(map[string]*quantity.Quantity, len(raw)),
		raw:               make(map[string]quantity.Raw, len(raw)),
		descriptors:       make(map[string]quantity.Descriptor),
	}
	for _, o := range opts {
		o(s)
	}

	dt := s.DeltaT()
	for name, r := range raw {
		desc, ok := s.descriptor(name)
		if !ok {
			continue
		}
		s.raw[name] = copyRaw(r)
		var prev quantity.Raw
		if previousRaw != nil {
			prev = previousRaw[name]
		}
		s.quantities[name] = quantity.NewWithDescriptor(desc, r, prev, previousDerivatives[name], dt)
	}
	return s
}

// Next builds the snapshot following prev from a new raw sample. prev may
// be nil or an initial snapshot, in which case the chain starts fresh.
func Next(prev *Snapshot, raw map[string]quantity.Raw, timestamp time.Time, opts ...Option) *Snapshot {
	if prev == nil || !prev.IsReady() {
		return New(raw, nil, nil, timestamp, time.Time{}, opts...)
	}
	derivatives := make(map[string]*quantity.Quantity, len(prev.quantities))
	for name, q := range prev.quantities {
		if d := q.Derivative(); d != nil {
			derivatives[name] = d
		}
	}
	return New(raw, prev.raw, derivatives, timestamp, prev.timestamp, opts...)
}

// FromQuantities wraps already-built quantities, keyed by their names.
func FromQuantities(qs []*quantity.Quantity, timestamp, previousTimestamp time.Time) *Snapshot {
	s := &Snapshot{
		timestamp:         timestamp,
		previousTimestamp: previousTimestamp,
		quantities:        make(map[string]*quantity.Quantity, len(qs)),
		raw:               make(map[string]quantity.Raw, len(qs)),
		descriptors:       make(map[string]quantity.Descriptor),
	}
	for _, q := range qs {
		s.quantities[q.Name()] = q
		s.raw[q.Name()] = rawFromValues(quantity.DescriptorFor(q.Kind()), q.Values())
	}
	return s
}

// Initial is the all-absent snapshot of the conventional quantities.
func Initial() *Snapshot {
	qs := make([]*quantity.Quantity, 0, len(Names))
	for _, name := range Names {
		k, _ := quantity.KindByName(name)
		qs = append(qs, quantity.Empty(k))
	}
	return FromQuantities(qs, time.Time{}, time.Time{})
}

func (s *Snapshot) descriptor(name string) (quantity.Descriptor, bool) {
	if d, ok := s.descriptors[name]; ok {
		return d, true
	}
	k, ok := quantity.KindByName(name)
	if !ok {
		return quantity.Descriptor{}, false
	}
	return quantity.DescriptorFor(k), true
}

// Timestamp is the tick time.
func (s *Snapshot) Timestamp() time.Time { return s.timestamp }

// PreviousTimestamp is the previous tick time (zero when none).
func (s *Snapshot) PreviousTimestamp() time.Time { return s.previousTimestamp }

// DeltaT is the elapsed time since the previous tick in seconds, or 0
// when there is no previous tick.
func (s *Snapshot) DeltaT() float64 {
	if s.previousTimestamp.IsZero() || s.timestamp.IsZero() {
		return 0
	}
	return s.timestamp.Sub(s.previousTimestamp).Seconds()
}

// Get returns the named quantity, or nil.
func (s *Snapshot) Get(name string) *quantity.Quantity {
	return s.quantities[name]
}

// Names returns the contained quantity names, sorted.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.quantities))
	for name := range s.quantities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Raw returns a copy of the raw input of the named quantity.
func (s *Snapshot) Raw(name string) quantity.Raw {
	return copyRaw(s.raw[name])
}

// Values returns the canonical values of every quantity by name.
func (s *Snapshot) Values() map[string][3]quantity.Value {
	out := make(map[string][3]quantity.Value, len(s.quantities))
	for name, q := range s.quantities {
		out[name] = q.Values()
	}
	return out
}

// Equal compares s and o component-wise over the quantities of both. A
// quantity held by only one side is compared against its empty value.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.covers(o) && o.covers(s)
}

func (s *Snapshot) covers(o *Snapshot) bool {
	for name, q := range s.quantities {
		other, ok := o.quantities[name]
		if !ok {
			other = emptyLike(q)
		}
		if !q.Equal(other) {
			return false
		}
	}
	return true
}

// IsReady reports whether at least one real sample has arrived.
func (s *Snapshot) IsReady() bool {
	return !s.Equal(Initial())
}

// DerivativesWrtT returns a snapshot whose quantities are the first
// derivatives of this snapshot's quantities, keyed by derivative name.
// It describes the same tick, so the timestamps are unchanged.
func (s *Snapshot) DerivativesWrtT() *Snapshot {
	qs := make([]*quantity.Quantity, 0, len(s.quantities))
	for _, name := range s.Names() {
		if d := s.quantities[name].Derivative(); d != nil {
			qs = append(qs, d)
		}
	}
	return FromQuantities(qs, s.timestamp, s.previousTimestamp)
}

func emptyLike(q *quantity.Quantity) *quantity.Quantity {
	return quantity.Empty(q.Kind())
}

func copyRaw(r quantity.Raw) quantity.Raw {
	if r == nil {
		return nil
	}
	out := make(quantity.Raw, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func rawFromValues(d quantity.Descriptor, values [3]quantity.Value) quantity.Raw {
	return d.Format(values)
}
