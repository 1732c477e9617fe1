package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// ErrUnknownSource is returned for records naming no known feed.
var ErrUnknownSource = errors.New("ingest: unknown source")

// record is the wire form, mirroring the browser sensor events:
//
//	{"source":"motion","timestamp":"...","acceleration":{"x":0.1,...},"rotationRate":{"alpha":1,...}}
//	{"source":"orientation","alpha":10,"beta":0,"gamma":-3}
//	{"source":"geolocation","coords":{"latitude":51.5,"longitude":-0.1,"altitude":12}}
//
// null components are absent.
type record struct {
	Source       Source              `json:"source"`
	Timestamp    *time.Time          `json:"timestamp,omitempty"`
	Acceleration map[string]*float64 `json:"acceleration,omitempty"`
	RotationRate map[string]*float64 `json:"rotationRate,omitempty"`
	Alpha        *float64            `json:"alpha,omitempty"`
	Beta         *float64            `json:"beta,omitempty"`
	Gamma        *float64            `json:"gamma,omitempty"`
	Coords       map[string]*float64 `json:"coords,omitempty"`
}

// DecodeRecord parses one JSON record.
func DecodeRecord(data []byte) (Reading, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Reading{}, fmt.Errorf("ingest: decode record: %w", err)
	}
	r := Reading{Source: rec.Source, Quantities: map[string]quantity.Raw{}}
	if rec.Timestamp != nil {
		r.Timestamp = *rec.Timestamp
	}

	switch rec.Source {
	case SourceMotion:
		putRaw(r.Quantities, snapshot.Acceleration, rec.Acceleration)
		putRaw(r.Quantities, snapshot.AngularVelocity, rec.RotationRate)
	case SourceOrientation:
		putRaw(r.Quantities, snapshot.Orientation, map[string]*float64{
			"alpha": rec.Alpha, "beta": rec.Beta, "gamma": rec.Gamma,
		})
	case SourceGeolocation:
		putRaw(r.Quantities, snapshot.Position, rec.Coords)
	default:
		return Reading{}, fmt.Errorf("%w: %q", ErrUnknownSource, rec.Source)
	}
	return r, nil
}

func putRaw(dst map[string]quantity.Raw, name string, fields map[string]*float64) {
	raw := quantity.Raw{}
	for k, v := range fields {
		if v != nil {
			raw[k] = *v
		}
	}
	if len(raw) > 0 {
		dst[name] = raw
	}
}

// EncodeRecord renders r in the wire form accepted by DecodeRecord.
func EncodeRecord(r Reading) ([]byte, error) {
	rec := record{Source: r.Source}
	if !r.Timestamp.IsZero() {
		ts := r.Timestamp
		rec.Timestamp = &ts
	}
	switch r.Source {
	case SourceMotion:
		rec.Acceleration = ptrs(r.Quantities[snapshot.Acceleration])
		rec.RotationRate = ptrs(r.Quantities[snapshot.AngularVelocity])
	case SourceOrientation:
		o := ptrs(r.Quantities[snapshot.Orientation])
		rec.Alpha, rec.Beta, rec.Gamma = o["alpha"], o["beta"], o["gamma"]
	case SourceGeolocation:
		rec.Coords = ptrs(r.Quantities[snapshot.Position])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, r.Source)
	}
	return json.Marshal(rec)
}

func ptrs(raw quantity.Raw) map[string]*float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]*float64, len(raw))
	for k, v := range raw {
		v := v
		out[k] = &v
	}
	return out
}
