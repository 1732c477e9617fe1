// Package kinematics derives the full kinematic state of a moving,
// rotating device from one sensor snapshot and assembles the 24×24
// state-transition matrix of the constant-jerk motion model with
// lever-arm and Coriolis correction blocks.
//
// State vector layout (Dimension = 3):
//
//	[ position velocity acceleration jerk | orientation ω α ζ ]
//	  0..2     3..5     6..8         9..11  12..14      ...  21..23
package kinematics

import (
	"github.com/banshee-data/motion.fusion/internal/linalg"
	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// Dimension is the spatial dimension of the model.
const Dimension = 3

// StateOrder is the number of chained quantities per frame
// (position, velocity, acceleration, jerk).
const StateOrder = 4

// StateSize is the length of the full state vector.
const StateSize = 2 * StateOrder * Dimension

// DeviceKinematics is a pure derivation from one snapshot.
type DeviceKinematics struct {
	position        *quantity.Quantity
	acceleration    *quantity.Quantity
	orientation     *quantity.Quantity
	angularVelocity *quantity.Quantity
	deltaT          float64
}

// New derives kinematics from s. Missing quantities behave as all-absent.
func New(s *snapshot.Snapshot) *DeviceKinematics {
	return &DeviceKinematics{
		position:        s.Get(snapshot.Position),
		acceleration:    s.Get(snapshot.Acceleration),
		orientation:     s.Get(snapshot.Orientation),
		angularVelocity: s.Get(snapshot.AngularVelocity),
		deltaT:          s.DeltaT(),
	}
}

// Initial returns the kinematics of the all-absent snapshot.
func Initial() *DeviceKinematics {
	return New(snapshot.Initial())
}

// DeltaT is the tick interval in seconds.
func (k *DeviceKinematics) DeltaT() float64 { return k.deltaT }

func (k *DeviceKinematics) Position() linalg.Vector3     { return k.position.Vector() }
func (k *DeviceKinematics) Acceleration() linalg.Vector3 { return k.acceleration.Vector() }
func (k *DeviceKinematics) Orientation() linalg.Vector3  { return k.orientation.Vector() }

// AngularVelocity is ω in rad/s.
func (k *DeviceKinematics) AngularVelocity() linalg.Vector3 { return k.angularVelocity.Vector() }

// Velocity is the position derivative, zero when not yet available.
func (k *DeviceKinematics) Velocity() linalg.Vector3 {
	return k.position.Derivative().Vector()
}

// Jerk is the acceleration derivative, zero when not yet available.
func (k *DeviceKinematics) Jerk() linalg.Vector3 {
	return k.acceleration.Derivative().Vector()
}

// AngularAcceleration is α, the angular velocity derivative.
func (k *DeviceKinematics) AngularAcceleration() linalg.Vector3 {
	return k.angularVelocity.Derivative().Vector()
}

// AngularJerk is ζ, the second angular velocity derivative.
func (k *DeviceKinematics) AngularJerk() linalg.Vector3 {
	return k.angularVelocity.Derivative().Derivative().Vector()
}

// Ready reports whether every measured quantity and every link of the
// derivative chains used by the model is available. Before that, the
// derived vectors are zero-filled.
func (k *DeviceKinematics) Ready() bool {
	if !k.position.Complete() || !k.acceleration.Complete() ||
		!k.orientation.Complete() || !k.angularVelocity.Complete() {
		return false
	}
	return k.position.Derivative().Complete() &&
		k.acceleration.Derivative().Complete() &&
		k.angularVelocity.Derivative().Complete() &&
		k.angularVelocity.Derivative().Derivative().Complete()
}

// Offset is the lever-arm vector
//
//	((α × a) + ω × (ω × a)) / |ω|²
//
// When |ω| is zero the divisor is taken as 1, so the result is the
// un-normalised numerator.
func (k *DeviceKinematics) Offset() linalg.Vector3 {
	omega := k.AngularVelocity()
	a := k.Acceleration()
	numerator := k.AngularAcceleration().Cross(a).Add(omega.Cross(omega.Cross(a)))

	divisor := omega.Dot(omega)
	if divisor == 0 {
		divisor = 1
	}
	return numerator.Scale(1 / divisor)
}

// StateVector returns the 24 state components in layout order.
func (k *DeviceKinematics) StateVector() []float64 {
	out := make([]float64, 0, StateSize)
	for _, v := range []linalg.Vector3{
		k.Position(), k.Velocity(), k.Acceleration(), k.Jerk(),
		k.Orientation(), k.AngularVelocity(), k.AngularAcceleration(), k.AngularJerk(),
	} {
		out = append(out, v.Slice()...)
	}
	return out
}
