package quantity

import (
	"math"
	"strconv"
)

// Value is an optional scalar component. The zero Value is absent, which
// is distinct from a present zero.
type Value struct {
	Float float64
	Valid bool
}

// Some returns a present value. Non-finite input is treated as absent.
func Some(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{Float: f, Valid: true}
}

// None returns an absent value.
func None() Value { return Value{} }

// Or returns the value, or def when absent.
func (v Value) Or(def float64) float64 {
	if !v.Valid {
		return def
	}
	return v.Float
}

// Ptr returns a pointer to the value, or nil when absent.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float
	return &f
}

func (v Value) String() string {
	if !v.Valid {
		return "<absent>"
	}
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}

// Raw is an unresolved sample keyed by external or canonical field names.
// Missing fields take the kind's initial value; NaN and ±Inf are absent.
type Raw map[string]float64
