package ingest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

func TestDecodeRecord(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		line string
		want Reading
	}{
		{
			name: "motion",
			line: `{"source":"motion","timestamp":"2026-03-01T12:00:00Z","acceleration":{"x":0.1,"y":null,"z":9.8},"rotationRate":{"alpha":10,"beta":0,"gamma":-2}}`,
			want: Reading{
				Source:    SourceMotion,
				Timestamp: ts,
				Quantities: map[string]quantity.Raw{
					snapshot.Acceleration:    {"x": 0.1, "z": 9.8},
					snapshot.AngularVelocity: {"alpha": 10, "beta": 0, "gamma": -2},
				},
			},
		},
		{
			name: "orientation without timestamp",
			line: `{"source":"orientation","alpha":90,"beta":null,"gamma":5}`,
			want: Reading{
				Source:     SourceOrientation,
				Quantities: map[string]quantity.Raw{snapshot.Orientation: {"alpha": 90, "gamma": 5}},
			},
		},
		{
			name: "geolocation",
			line: `{"source":"geolocation","coords":{"latitude":51.5,"longitude":-0.1}}`,
			want: Reading{
				Source:     SourceGeolocation,
				Quantities: map[string]quantity.Raw{snapshot.Position: {"latitude": 51.5, "longitude": -0.1}},
			},
		},
		{
			name: "all null motion",
			line: `{"source":"motion","acceleration":{"x":null}}`,
			want: Reading{Source: SourceMotion, Quantities: map[string]quantity.Raw{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord([]byte(tt.line))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("reading mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRecord_Errors(t *testing.T) {
	_, err := DecodeRecord([]byte(`{"source":"barometer"}`))
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = DecodeRecord([]byte(`{"source":`))
	assert.Error(t, err)
}

func TestEncodeRecord_RoundTrip(t *testing.T) {
	in := Reading{
		Source:     SourceOrientation,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 5e6, time.UTC),
		Quantities: map[string]quantity.Raw{snapshot.Orientation: {"alpha": 45, "beta": 1}},
	}
	data, err := EncodeRecord(in)
	require.NoError(t, err)

	out, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.Quantities, out.Quantities)

	_, err = EncodeRecord(Reading{Source: "sonar"})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestSource_Valid(t *testing.T) {
	for _, s := range Sources {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Source("sonar").Valid())
}

func TestHints(t *testing.T) {
	h := AcquisitionHints{EnableHighAccuracy: true, Timeout: 5 * time.Second, MaximumAge: 250 * time.Millisecond}
	assert.Equal(t, []string{"HA=1", "TO=5000", "MA=250", "OJ"}, h.Commands())
	assert.JSONEq(t, `{"enableHighAccuracy":true,"timeout":5000,"maximumAge":250}`, string(h.Payload()))
}
