package kinematics

import (
	"fmt"

	"github.com/banshee-data/motion.fusion/internal/linalg"
)

// kinematicsBlockWidth is the zero padding placed before each Jacobian
// inside a correction block.
const kinematicsBlockWidth = (StateOrder - 1) * Dimension

// StateEquationCoefficients returns the truncated Taylor expansion rows
// for position, velocity, acceleration and jerk over dt.
func StateEquationCoefficients(dt float64) [][]float64 {
	return [][]float64{
		{1, dt, dt * dt / 2, dt * dt * dt / 6},
		{0, 1, dt, dt * dt / 2},
		{0, 0, 1, dt},
		{0, 0, 0, 1},
	}
}

// KinematicsMatrix expands the state equations to a 12×12 block matrix,
// one Dimension-wide block per coefficient.
func (k *DeviceKinematics) KinematicsMatrix() *linalg.Matrix {
	m, err := linalg.Expand(StateEquationCoefficients(k.deltaT), Dimension)
	if err != nil {
		panic(err)
	}
	return m
}

// LeverArmEffectMatrix is the 12×12 correction block coupling the
// rotational state into the linear state.
func (k *DeviceKinematics) LeverArmEffectMatrix() (*linalg.Matrix, error) {
	j := k.LeverArmJacobian()
	return paddedSum(j.WrtAlpha, j.WrtOmega)
}

// CoriolisEffectMatrix is the 12×12 Coriolis correction block.
func (k *DeviceKinematics) CoriolisEffectMatrix() (*linalg.Matrix, error) {
	j := k.CoriolisJacobian()
	return paddedSum(j.WrtV, j.WrtOmega)
}

func paddedSum(jacobians ...*linalg.Matrix) (*linalg.Matrix, error) {
	n := StateOrder * Dimension
	out := linalg.Zeros(n, n)
	for _, j := range jacobians {
		p, err := j.Pad(kinematicsBlockWidth, kinematicsBlockWidth, 0, 0)
		if err != nil {
			return nil, err
		}
		if out, err = out.Add(p); err != nil {
			return nil, fmt.Errorf("correction block: %w", err)
		}
	}
	return out, nil
}

// StateTransitionMatrix assembles
//
//	[ K  L ]
//	[ C  K ]
//
// from the kinematics matrix K, the lever-arm block L and the Coriolis
// block C.
func (k *DeviceKinematics) StateTransitionMatrix() (*linalg.Matrix, error) {
	km := k.KinematicsMatrix()
	lever, err := k.LeverArmEffectMatrix()
	if err != nil {
		return nil, fmt.Errorf("lever-arm effect: %w", err)
	}
	coriolis, err := k.CoriolisEffectMatrix()
	if err != nil {
		return nil, fmt.Errorf("coriolis effect: %w", err)
	}
	return linalg.Block([][]*linalg.Matrix{
		{km, lever},
		{coriolis, km},
	})
}
