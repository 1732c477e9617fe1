package kinematics

import "github.com/banshee-data/motion.fusion/internal/linalg"

// LeverArmJacobian holds the partial derivatives of the lever-arm
// acceleration term o×α − ω×(ω×o).
type LeverArmJacobian struct {
	WrtAlpha *linalg.Matrix
	WrtOmega *linalg.Matrix
}

// CoriolisJacobian holds the partial derivatives of the Coriolis term 2ω×v.
type CoriolisJacobian struct {
	WrtV     *linalg.Matrix
	WrtOmega *linalg.Matrix
}

// LeverArmCorrection evaluates o×α − ω×(ω×o) for the current offset o.
func (k *DeviceKinematics) LeverArmCorrection(alpha, omega linalg.Vector3) linalg.Vector3 {
	o := k.Offset()
	return o.Cross(alpha).Sub(omega.Cross(omega.Cross(o)))
}

// CoriolisCorrection evaluates 2ω×v.
func (k *DeviceKinematics) CoriolisCorrection(v, omega linalg.Vector3) linalg.Vector3 {
	return omega.Cross(v).Scale(2)
}

// LeverArmJacobian evaluates the lever-arm Jacobians at the current state:
//
//	∂/∂α = [o]×
//	∂/∂ω = −((ω·o)I + ω oᵀ − 2 o ωᵀ)
func (k *DeviceKinematics) LeverArmJacobian() LeverArmJacobian {
	o := k.Offset()
	omega := k.AngularVelocity()

	wrtOmega := sum3(
		linalg.Identity(Dimension).Scale(omega.Dot(o)),
		omega.Outer(o),
		o.Outer(omega).Scale(-2),
	).Scale(-1)

	return LeverArmJacobian{
		WrtAlpha: o.Skew(),
		WrtOmega: wrtOmega,
	}
}

// CoriolisJacobian evaluates the Coriolis Jacobians at the current state:
//
//	∂/∂v = 2[ω]×
//	∂/∂ω = −2[v]×
func (k *DeviceKinematics) CoriolisJacobian() CoriolisJacobian {
	return CoriolisJacobian{
		WrtV:     k.AngularVelocity().Skew().Scale(2),
		WrtOmega: k.Velocity().Skew().Scale(-2),
	}
}

// sum3 adds 3×3 matrices; the shapes are fixed so errors cannot occur.
func sum3(ms ...*linalg.Matrix) *linalg.Matrix {
	out := linalg.Zeros(Dimension, Dimension)
	for _, m := range ms {
		var err error
		if out, err = out.Add(m); err != nil {
			panic(err)
		}
	}
	return out
}
