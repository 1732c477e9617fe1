package snapshot

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/motion.fusion/internal/quantity"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(math.Round(sec * float64(time.Second))))
}

func positionRaw(x, y, z float64) map[string]quantity.Raw {
	return map[string]quantity.Raw{Position: {"x": x, "y": y, "z": z}}
}

func TestInitial_IsNotReady(t *testing.T) {
	s := Initial()
	if s.IsReady() {
		t.Fatal("Initial().IsReady() = true, want false")
	}
	for _, name := range Names {
		if s.Get(name) == nil {
			t.Errorf("Initial() missing %q", name)
		}
	}
}

func TestNew_IsReadyAfterFirstSample(t *testing.T) {
	s := New(positionRaw(1, 2, 3), nil, nil, at(0), time.Time{})
	if !s.IsReady() {
		t.Fatal("IsReady() = false after a real sample")
	}
	if s.DeltaT() != 0 {
		t.Errorf("DeltaT() = %v without previous tick, want 0", s.DeltaT())
	}
	if s.Get(Position).Initialized() {
		t.Error("first tick should be uninitialized")
	}
}

func TestNew_IgnoresUnknownQuantities(t *testing.T) {
	s := New(map[string]quantity.Raw{"temperature": {"x": 1}}, nil, nil, at(0), time.Time{})
	if s.Get("temperature") != nil {
		t.Error("unknown quantity should be ignored")
	}
}

func TestEqual_Reflexive(t *testing.T) {
	s := New(map[string]quantity.Raw{
		Position:        {"x": 1, "y": 2},
		AngularVelocity: {"alpha": 10},
	}, nil, nil, at(0), time.Time{})

	if !s.Equal(s) {
		t.Error("snapshot not equal to itself")
	}
	if !Initial().Equal(Initial()) {
		t.Error("initial snapshot not equal to itself")
	}
	other := New(positionRaw(1, 2, 4), nil, nil, at(0), time.Time{})
	if s.Equal(other) {
		t.Error("different snapshots compare equal")
	}

	onlyPos := New(positionRaw(1, 2, 3), nil, nil, at(0), time.Time{})
	posAcc := New(map[string]quantity.Raw{
		Position:     {"x": 1, "y": 2, "z": 3},
		Acceleration: {"x": 0, "y": 0, "z": 9.81},
	}, nil, nil, at(0), time.Time{})
	empty := New(nil, nil, nil, at(0), time.Time{})
	for _, tc := range []struct {
		name string
		a, b *Snapshot
	}{
		{"subset", onlyPos, posAcc},
		{"empty", empty, posAcc},
	} {
		if tc.a.Equal(tc.b) || tc.b.Equal(tc.a) {
			t.Errorf("%s: a.Equal(b)=%v b.Equal(a)=%v, want both false", tc.name, tc.a.Equal(tc.b), tc.b.Equal(tc.a))
		}
	}
	if !empty.Equal(Initial()) || !Initial().Equal(empty) {
		t.Error("snapshot without samples differs from the initial snapshot")
	}
}

func TestNext_EndToEndConstantVelocity(t *testing.T) {
	var s *Snapshot
	for i := 0; i <= 2; i++ {
		s = Next(s, positionRaw(float64(i), 0, 0), at(float64(i)))
	}

	if s.DeltaT() != 1 {
		t.Fatalf("DeltaT() = %v, want 1", s.DeltaT())
	}
	v := s.Get(Position).Derivative()
	if v == nil {
		t.Fatal("no velocity after three ticks")
	}
	want := [3]quantity.Value{quantity.Some(1), quantity.Some(0), quantity.Some(0)}
	if diff := cmp.Diff(want, v.Values()); diff != "" {
		t.Errorf("velocity mismatch (-want +got):\n%s", diff)
	}
	a := v.Derivative()
	if a == nil {
		t.Fatal("no acceleration after three ticks")
	}
	if a.Vector().Magnitude() != 0 {
		t.Errorf("acceleration = %v, want zero", a.Vector())
	}
}

func TestNext_SameTimestampHasNoDerivative(t *testing.T) {
	s := Next(nil, positionRaw(0, 0, 0), at(1))
	s = Next(s, positionRaw(5, 0, 0), at(1))

	if s.DeltaT() != 0 {
		t.Fatalf("DeltaT() = %v, want 0", s.DeltaT())
	}
	if d := s.Get(Position).Derivative(); d != nil {
		t.Errorf("derivative = %v for zero deltaT, want none", d.Values())
	}
	for _, q := range s.DerivativesWrtT().quantities {
		for _, v := range q.Values() {
			if v.Valid && (math.IsNaN(v.Float) || math.IsInf(v.Float, 0)) {
				t.Fatalf("non-finite derivative %v", v)
			}
		}
	}
}

func TestNext_ConstantVelocityConverges(t *testing.T) {
	const vx, vy = 2.5, -0.75
	var s *Snapshot
	for i := 0; i < 50; i++ {
		ts := float64(i) * 0.1
		s = Next(s, positionRaw(vx*ts, vy*ts, 0), at(ts))
	}

	v := s.Get(Position).Derivative().Vector()
	if math.Abs(v.X-vx) > 1e-6 || math.Abs(v.Y-vy) > 1e-6 {
		t.Errorf("velocity = %v, want (%v, %v, 0)", v, vx, vy)
	}
	a := s.Get(Position).Derivative().Derivative().Vector()
	if a.Magnitude() > 1e-6 {
		t.Errorf("acceleration = %v, want ~0", a)
	}
	j := s.Get(Position).Derivative().Derivative().Derivative().Vector()
	if j.Magnitude() > 1e-6 {
		t.Errorf("jerk = %v, want ~0", j)
	}
}

func TestDerivativesWrtT_AccelerationRamp(t *testing.T) {
	// a(t) = 0.5·t along x, so jerk is 0.5
	var s *Snapshot
	for i := 0; i < 5; i++ {
		ts := float64(i)
		s = Next(s, map[string]quantity.Raw{
			Acceleration: {"x": 0.5 * ts, "y": 0, "z": 1},
		}, at(ts))
	}

	d := s.DerivativesWrtT()
	if !d.Timestamp().Equal(s.Timestamp()) || !d.PreviousTimestamp().Equal(s.PreviousTimestamp()) {
		t.Error("derivative snapshot must keep the same timestamps")
	}
	jerk := d.Get("jerk")
	if jerk == nil {
		t.Fatalf("derivative names = %v, want jerk", d.Names())
	}
	want := [3]quantity.Value{quantity.Some(0.5), quantity.Some(0), quantity.Some(0)}
	if diff := cmp.Diff(want, jerk.Values(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("jerk mismatch (-want +got):\n%s", diff)
	}
	if len(d.DerivativesWrtT().Names()) != 0 {
		t.Error("jerk ends the chain, the second derivative view should be empty")
	}
}

func TestDerivativesWrtT_TwiceOnQuadraticPosition(t *testing.T) {
	// x(t) = t², so the second view is acceleration 2
	var s *Snapshot
	for i := 0; i < 4; i++ {
		ts := float64(i)
		s = Next(s, positionRaw(ts*ts, 0, 0), at(ts))
	}
	acc := s.DerivativesWrtT().DerivativesWrtT().Get(Acceleration)
	if acc == nil {
		t.Fatal("no acceleration in second derivative view")
	}
	if got := acc.Values()[0].Float; math.Abs(got-2) > 1e-9 {
		t.Errorf("acceleration x = %v, want 2", got)
	}
}

func TestDerivativesWrtT_OrientationBecomesAngularVelocity(t *testing.T) {
	s := Next(nil, map[string]quantity.Raw{Orientation: {"alpha": 0}}, at(0))
	s = Next(s, map[string]quantity.Raw{Orientation: {"alpha": 90}}, at(1))

	w := s.DerivativesWrtT().Get(AngularVelocity)
	if w == nil {
		t.Fatal("orientation derivative missing")
	}
	if got := w.Values()[2].Float; math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("yaw rate = %v rad/s, want pi/2", got)
	}
}

func TestWithDescriptors_AliasOverride(t *testing.T) {
	d := quantity.DescriptorFor(quantity.Position).WithAliases(map[string]string{"east": "x"})
	s := New(map[string]quantity.Raw{Position: {"east": 7}}, nil, nil, at(0), time.Time{},
		WithDescriptors(map[string]quantity.Descriptor{Position: d}))
	if got := s.Get(Position).Values()[0]; got != quantity.Some(7) {
		t.Errorf("x = %v, want 7", got)
	}
}
