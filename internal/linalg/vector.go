// Package linalg provides the small fixed-size vector and block-matrix
// algebra used by the kinematics and estimation packages.
//
// Vectors are thin wrappers over r3.Vector; matrices wrap a gonum
// *mat.Dense and add the block assembly operations (block, block
// diagonal, zero padding, Kronecker expansion) that the state-transition
// construction needs. Assembly with mismatched dimensions is always an
// error and never truncates.
package linalg

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Vector3 is a three-component vector.
type Vector3 struct {
	X, Y, Z float64
}

// Zero3 is the zero vector.
var Zero3 = Vector3{}

// NewVector3 returns the vector (x, y, z).
func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// VectorFromSlice builds a Vector3 from exactly three values.
func VectorFromSlice(v []float64) (Vector3, error) {
	if len(v) != 3 {
		return Vector3{}, fmt.Errorf("vector from %d values: %w", len(v), ErrDimensionMismatch)
	}
	return Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (v Vector3) r3() r3.Vector { return r3.Vector{X: v.X, Y: v.Y, Z: v.Z} }
func fromR3(v r3.Vector) Vector3 { return Vector3{X: v.X, Y: v.Y, Z: v.Z} }

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 { return fromR3(v.r3().Add(o.r3())) }

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 { return fromR3(v.r3().Sub(o.r3())) }

// Scale multiplies every component by s.
func (v Vector3) Scale(s float64) Vector3 { return fromR3(v.r3().Mul(s)) }

// Cross returns v × o.
func (v Vector3) Cross(o Vector3) Vector3 { return fromR3(v.r3().Cross(o.r3())) }

// Dot returns v · o.
func (v Vector3) Dot(o Vector3) float64 { return v.r3().Dot(o.r3()) }

// Magnitude is the euclidean norm.
func (v Vector3) Magnitude() float64 { return v.r3().Norm() }

// IsZero reports whether all components are exactly zero.
func (v Vector3) IsZero() bool { return v == Zero3 }

// IsFinite reports whether no component is NaN or ±Inf.
func (v Vector3) IsFinite() bool {
	for _, c := range v.Slice() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Slice returns the components as [x, y, z].
func (v Vector3) Slice() []float64 { return []float64{v.X, v.Y, v.Z} }

// Skew returns the skew-symmetric cross-product matrix [v]x, so that
// Skew(v).MulVec(w) == v.Cross(w).
//
//	[  0  -z   y ]
//	[  z   0  -x ]
//	[ -y   x   0 ]
func (v Vector3) Skew() *Matrix {
	return mustMatrix([][]float64{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	})
}

// Outer returns the 3×3 outer product v oᵀ.
func (v Vector3) Outer(o Vector3) *Matrix {
	a, b := v.Slice(), o.Slice()
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = []float64{a[i] * b[0], a[i] * b[1], a[i] * b[2]}
	}
	return mustMatrix(rows)
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
