package kalman

import (
	"fmt"

	"github.com/banshee-data/motion.fusion/internal/kinematics"
	"github.com/banshee-data/motion.fusion/internal/linalg"
)

// NewKinematic returns a filter over the full kinematics state vector.
// Every component is observed. The configured transition is the
// rotation-free constant-jerk model for dt; callers with a live
// DeviceKinematics feed its state-transition matrix through
// UpdateWithTransition instead.
func NewKinematic(dt, processNoise, observationNoise, initialVariance float64) (*Filter, error) {
	if processNoise < 0 || observationNoise < 0 || initialVariance < 0 {
		return nil, fmt.Errorf("kalman: negative noise (q=%g r=%g p0=%g)", processNoise, observationNoise, initialVariance)
	}
	n := kinematics.StateSize

	k, err := linalg.Expand(kinematics.StateEquationCoefficients(dt), kinematics.Dimension)
	if err != nil {
		return nil, err
	}
	f, err := linalg.BlockDiagonal(k, k)
	if err != nil {
		return nil, err
	}

	return New(Config{
		InitialMean:       make([]float64, n),
		InitialCovariance: linalg.Identity(n).Scale(initialVariance),
		Transition:        f,
		ProcessNoise:      linalg.Identity(n).Scale(processNoise),
		Observation:       linalg.Identity(n),
		ObservationNoise:  linalg.Identity(n).Scale(observationNoise),
	})
}
