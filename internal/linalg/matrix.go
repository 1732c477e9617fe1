package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is returned when operands do not have compatible shapes.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmpty is returned when an operation needs at least one non-empty operand.
	ErrEmpty = errors.New("empty matrix")
)

// Matrix is a dense row-major matrix.
type Matrix struct {
	d *mat.Dense
}

// NewMatrix builds a matrix from rows. Every row must have the same length.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), c, ErrDimensionMismatch)
		}
		data = append(data, row...)
	}
	return &Matrix{d: mat.NewDense(len(rows), c, data)}, nil
}

func mustMatrix(rows [][]float64) *Matrix {
	m, err := NewMatrix(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Zeros returns an r×c zero matrix.
func Zeros(r, c int) *Matrix {
	return &Matrix{d: mat.NewDense(r, c, nil)}
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Matrix {
	m := Zeros(n, n)
	for i := 0; i < n; i++ {
		m.d.Set(i, i, 1)
	}
	return m
}

// FromDense copies a gonum matrix.
func FromDense(a mat.Matrix) *Matrix {
	return &Matrix{d: mat.DenseCopyOf(a)}
}

// Dense returns a copy of the underlying gonum matrix.
func (m *Matrix) Dense() *mat.Dense {
	return mat.DenseCopyOf(m.d)
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) { return m.d.Dims() }

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.d.At(i, j) }

// Rows returns a copy of the matrix as a slice of rows.
func (m *Matrix) Rows() [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		mat.Row(out[i], i, m.d)
	}
	return out
}

// Add returns m + o.
func (m *Matrix) Add(o *Matrix) (*Matrix, error) {
	mr, mc := m.Dims()
	or, oc := o.Dims()
	if mr != or || mc != oc {
		return nil, fmt.Errorf("add %dx%d + %dx%d: %w", mr, mc, or, oc, ErrDimensionMismatch)
	}
	var out mat.Dense
	out.Add(m.d, o.d)
	return &Matrix{d: &out}, nil
}

// Scale returns s·m.
func (m *Matrix) Scale(s float64) *Matrix {
	var out mat.Dense
	out.Scale(s, m.d)
	return &Matrix{d: &out}
}

// Mul returns the matrix product m·o.
func (m *Matrix) Mul(o *Matrix) (*Matrix, error) {
	mr, mc := m.Dims()
	or, oc := o.Dims()
	if mc != or {
		return nil, fmt.Errorf("mul %dx%d · %dx%d: %w", mr, mc, or, oc, ErrDimensionMismatch)
	}
	var out mat.Dense
	out.Mul(m.d, o.d)
	return &Matrix{d: &out}, nil
}

// MulVec returns m·v.
func (m *Matrix) MulVec(v []float64) ([]float64, error) {
	r, c := m.Dims()
	if len(v) != c {
		return nil, fmt.Errorf("mulvec %dx%d · %d: %w", r, c, len(v), ErrDimensionMismatch)
	}
	var out mat.VecDense
	out.MulVec(m.d, mat.NewVecDense(len(v), append([]float64(nil), v...)))
	return out.RawVector().Data, nil
}

// Apply3 multiplies a 3×3 matrix by a Vector3.
func (m *Matrix) Apply3(v Vector3) (Vector3, error) {
	out, err := m.MulVec(v.Slice())
	if err != nil {
		return Vector3{}, err
	}
	return VectorFromSlice(out)
}

// Transpose returns mᵀ.
func (m *Matrix) Transpose() *Matrix {
	return &Matrix{d: mat.DenseCopyOf(m.d.T())}
}

// Pad surrounds m with zeros: top rows above, left columns before,
// bottom rows below and right columns after.
func (m *Matrix) Pad(top, left, bottom, right int) (*Matrix, error) {
	if top < 0 || left < 0 || bottom < 0 || right < 0 {
		return nil, fmt.Errorf("negative padding (%d,%d,%d,%d): %w", top, left, bottom, right, ErrDimensionMismatch)
	}
	r, c := m.Dims()
	out := mat.NewDense(top+r+bottom, left+c+right, nil)
	out.Slice(top, top+r, left, left+c).(*mat.Dense).Copy(m.d)
	return &Matrix{d: out}, nil
}

// Equal reports whether m and o have the same shape and elements within tol.
func (m *Matrix) Equal(o *Matrix, tol float64) bool {
	return mat.EqualApprox(m.d, o.d, tol)
}

// Block assembles a matrix from a grid of blocks. All blocks in a grid
// row must share a height and all blocks in a grid column a width.
func Block(grid [][]*Matrix) (*Matrix, error) {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return nil, ErrEmpty
	}
	cols := len(grid[0])
	heights := make([]int, len(grid))
	widths := make([]int, cols)
	for i, row := range grid {
		if len(row) != cols {
			return nil, fmt.Errorf("block row %d has %d blocks, want %d: %w", i, len(row), cols, ErrDimensionMismatch)
		}
		for j, b := range row {
			if b == nil {
				return nil, fmt.Errorf("block (%d,%d) is nil: %w", i, j, ErrEmpty)
			}
			r, c := b.Dims()
			if j == 0 {
				heights[i] = r
			} else if r != heights[i] {
				return nil, fmt.Errorf("block (%d,%d) has %d rows, want %d: %w", i, j, r, heights[i], ErrDimensionMismatch)
			}
			if i == 0 {
				widths[j] = c
			} else if c != widths[j] {
				return nil, fmt.Errorf("block (%d,%d) has %d columns, want %d: %w", i, j, c, widths[j], ErrDimensionMismatch)
			}
		}
	}

	total := func(xs []int) int {
		n := 0
		for _, x := range xs {
			n += x
		}
		return n
	}
	out := mat.NewDense(total(heights), total(widths), nil)
	top := 0
	for i, row := range grid {
		left := 0
		for j, b := range row {
			out.Slice(top, top+heights[i], left, left+widths[j]).(*mat.Dense).Copy(b.d)
			left += widths[j]
		}
		top += heights[i]
	}
	return &Matrix{d: out}, nil
}

// BlockDiagonal places the blocks along the diagonal. All blocks must
// have identical dimensions.
func BlockDiagonal(blocks ...*Matrix) (*Matrix, error) {
	if len(blocks) == 0 {
		return nil, ErrEmpty
	}
	r, c := blocks[0].Dims()
	for i, b := range blocks[1:] {
		br, bc := b.Dims()
		if br != r || bc != c {
			return nil, fmt.Errorf("diagonal block %d is %dx%d, want %dx%d: %w", i+1, br, bc, r, c, ErrDimensionMismatch)
		}
	}
	out := mat.NewDense(r*len(blocks), c*len(blocks), nil)
	for i, b := range blocks {
		out.Slice(i*r, (i+1)*r, i*c, (i+1)*c).(*mat.Dense).Copy(b.d)
	}
	return &Matrix{d: out}, nil
}

// Expand builds coeffs ⊗ I(dim): every coefficient becomes a dim×dim
// scaled identity block. Each row of coeffs is one state equation.
func Expand(coeffs [][]float64, dim int) (*Matrix, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("expand with dimension %d: %w", dim, ErrDimensionMismatch)
	}
	c, err := NewMatrix(coeffs)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Kronecker(c.d, Identity(dim).d)
	return &Matrix{d: &out}, nil
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.d, mat.Squeeze()))
}
