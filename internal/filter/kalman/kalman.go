// Package kalman implements a linear discrete Kalman filter over gonum
// matrices.
package kalman

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/motion.fusion/internal/linalg"
)

// MinReciprocalCondition is the smallest reciprocal condition number of
// the innovation covariance accepted before a correction is refused.
const MinReciprocalCondition = 1e-12

var (
	// ErrDimension reports matrices or vectors of inconsistent size.
	ErrDimension = errors.New("kalman: dimension mismatch")
	// ErrSingularInnovation reports a singular or near-singular
	// innovation covariance.
	ErrSingularInnovation = errors.New("kalman: singular innovation covariance")
	// ErrNotFinite reports a step that would produce NaN or Inf.
	ErrNotFinite = errors.New("kalman: non-finite result")
)

// Config is the model of the filter. All matrices are copied by New.
type Config struct {
	InitialMean       []float64
	InitialCovariance *linalg.Matrix // n×n
	Transition        *linalg.Matrix // F, n×n
	ProcessNoise      *linalg.Matrix // Q, n×n
	Observation       *linalg.Matrix // H, m×n
	ObservationNoise  *linalg.Matrix // R, m×m
}

// State is a copy of the filter's mean and covariance.
type State struct {
	Mean       []float64
	Covariance *linalg.Matrix
}

// Filter owns its mean and covariance exclusively.
type Filter struct {
	mu sync.Mutex

	x0 *mat.VecDense
	p0 *mat.Dense
	f  *mat.Dense
	q  *mat.Dense
	h  *mat.Dense
	r  *mat.Dense

	x *mat.VecDense
	p *mat.Dense
}

// New validates cfg and returns a filter at the initial state.
func New(cfg Config) (*Filter, error) {
	n := len(cfg.InitialMean)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty initial mean", ErrDimension)
	}
	for _, c := range []struct {
		name string
		m    *linalg.Matrix
		r, c int
	}{
		{"initial covariance", cfg.InitialCovariance, n, n},
		{"transition", cfg.Transition, n, n},
		{"process noise", cfg.ProcessNoise, n, n},
	} {
		if err := checkDims(c.name, c.m, c.r, c.c); err != nil {
			return nil, err
		}
	}
	if cfg.Observation == nil {
		return nil, fmt.Errorf("%w: observation is nil", ErrDimension)
	}
	m, cols := cfg.Observation.Dims()
	if cols != n {
		return nil, fmt.Errorf("%w: observation is %dx%d, state has %d components", ErrDimension, m, cols, n)
	}
	if err := checkDims("observation noise", cfg.ObservationNoise, m, m); err != nil {
		return nil, err
	}

	k := &Filter{
		x0: mat.NewVecDense(n, append([]float64(nil), cfg.InitialMean...)),
		p0: cfg.InitialCovariance.Dense(),
		f:  cfg.Transition.Dense(),
		q:  cfg.ProcessNoise.Dense(),
		h:  cfg.Observation.Dense(),
		r:  cfg.ObservationNoise.Dense(),
	}
	k.reset()
	return k, nil
}

func checkDims(name string, m *linalg.Matrix, r, c int) error {
	if m == nil {
		return fmt.Errorf("%w: %s is nil", ErrDimension, name)
	}
	if gr, gc := m.Dims(); gr != r || gc != c {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrDimension, name, gr, gc, r, c)
	}
	return nil
}

// Dims returns the state and observation sizes.
func (k *Filter) Dims() (state, observation int) {
	m, n := k.h.Dims()
	return n, m
}

// Reset restores the configured initial mean and covariance.
func (k *Filter) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.reset()
}

func (k *Filter) reset() {
	k.x = mat.VecDenseCopyOf(k.x0)
	k.p = mat.DenseCopyOf(k.p0)
}

// State returns a copy of the current mean and covariance.
func (k *Filter) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state()
}

func (k *Filter) state() State {
	return State{
		Mean:       append([]float64(nil), k.x.RawVector().Data...),
		Covariance: linalg.FromDense(k.p),
	}
}

// Predict propagates the state with the configured transition.
func (k *Filter) Predict() (State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	x, p := k.predict(k.f)
	if !finite(x, p) {
		return k.state(), ErrNotFinite
	}
	k.x, k.p = x, p
	return k.state(), nil
}

// Correct folds observation z into the current state.
func (k *Filter) Correct(z []float64) (State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	x, p, err := k.correct(k.x, k.p, z)
	if err != nil {
		return k.state(), err
	}
	k.x, k.p = x, p
	return k.state(), nil
}

// Update runs one predict/correct cycle with the configured transition.
func (k *Filter) Update(z []float64) (State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.update(k.f, z)
}

// UpdateWithTransition runs one predict/correct cycle using f in place
// of the configured transition for this step only.
func (k *Filter) UpdateWithTransition(f *linalg.Matrix, z []float64) (State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := k.x.Len()
	if err := checkDims("transition", f, n, n); err != nil {
		return k.state(), err
	}
	return k.update(f.Dense(), z)
}

// update leaves the state untouched unless both steps succeed.
func (k *Filter) update(f *mat.Dense, z []float64) (State, error) {
	x, p := k.predict(f)
	x, p, err := k.correct(x, p, z)
	if err != nil {
		return k.state(), err
	}
	k.x, k.p = x, p
	return k.state(), nil
}

func (k *Filter) predict(f *mat.Dense) (*mat.VecDense, *mat.Dense) {
	var x mat.VecDense
	x.MulVec(f, k.x)

	var fp, p mat.Dense
	fp.Mul(f, k.p)
	p.Mul(&fp, f.T())
	p.Add(&p, k.q)
	return &x, &p
}

func (k *Filter) correct(x *mat.VecDense, p *mat.Dense, z []float64) (*mat.VecDense, *mat.Dense, error) {
	m, n := k.h.Dims()
	if len(z) != m {
		return nil, nil, fmt.Errorf("%w: observation has %d components, want %d", ErrDimension, len(z), m)
	}

	// y = z - Hx
	var hx, y mat.VecDense
	hx.MulVec(k.h, x)
	y.SubVec(mat.NewVecDense(m, append([]float64(nil), z...)), &hx)

	// S = HPHᵀ + R
	var hp, s mat.Dense
	hp.Mul(k.h, p)
	s.Mul(&hp, k.h.T())
	s.Add(&s, k.r)

	var lu mat.LU
	lu.Factorize(&s)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || 1/cond < MinReciprocalCondition {
		return nil, nil, fmt.Errorf("%w: condition number %g", ErrSingularInnovation, cond)
	}
	// K = PHᵀS⁻¹, solved as SᵀKᵀ = HP
	var kt mat.Dense
	if err := lu.SolveTo(&kt, true, &hp); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}
	gain := mat.DenseCopyOf(kt.T())

	var ky, xNew mat.VecDense
	ky.MulVec(gain, &y)
	xNew.AddVec(x, &ky)

	// P = (I - KH)P
	var kh, pNew mat.Dense
	kh.Mul(gain, k.h)
	ikh := eye(n)
	ikh.Sub(ikh, &kh)
	pNew.Mul(ikh, p)

	if !finite(&xNew, &pNew) {
		return nil, nil, ErrNotFinite
	}
	return &xNew, &pNew, nil
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func finite(x *mat.VecDense, p *mat.Dense) bool {
	for _, v := range x.RawVector().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	r, c := p.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := p.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
