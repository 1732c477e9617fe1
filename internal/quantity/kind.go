// Package quantity models differentiable physical quantities: a named
// three-component value that remembers the previous tick and carries its
// finite-difference derivative, itself typed as the next quantity in a
// fixed chain (position → velocity → acceleration → jerk and
// orientation → angular velocity → angular acceleration → angular jerk).
package quantity

import "fmt"

// Kind identifies one of the closed set of quantities.
type Kind int

const (
	Position Kind = iota
	Velocity
	Acceleration
	Jerk
	Orientation
	AngularVelocity
	AngularAcceleration
	AngularJerk
)

// Kinds lists every kind in chain order.
var Kinds = []Kind{
	Position, Velocity, Acceleration, Jerk,
	Orientation, AngularVelocity, AngularAcceleration, AngularJerk,
}

// Derivative returns the kind of this kind's time derivative. Jerk and
// AngularJerk terminate their chains.
func (k Kind) Derivative() (Kind, bool) {
	switch k {
	case Position, Velocity, Acceleration:
		return k + 1, true
	case Orientation, AngularVelocity, AngularAcceleration:
		return k + 1, true
	}
	return 0, false
}

// Order is the kind's position in its chain (0 for position/orientation).
func (k Kind) Order() int {
	if k >= Orientation {
		return int(k - Orientation)
	}
	return int(k)
}

// Angular reports whether k belongs to the rotational chain.
func (k Kind) Angular() bool { return k >= Orientation && k <= AngularJerk }

// Name is the canonical name of the kind.
func (k Kind) Name() string {
	if d, ok := descriptors[k]; ok {
		return d.Name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) String() string { return k.Name() }

// KindByName resolves a canonical quantity name.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds {
		if descriptors[k].Name == name {
			return k, true
		}
	}
	return 0, false
}
