package report

import (
	"bytes"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/db"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func sampleTicks(run uuid.UUID) []db.TickRecord {
	var ticks []db.TickRecord
	for i := 0; i < 5; i++ {
		x := float64(i)
		rec := db.TickRecord{
			RunID:     run,
			Tick:      uint64(i),
			Timestamp: epoch.Add(time.Duration(i) * 100 * time.Millisecond),
			Raw:       db.Vectors{"position": {f(x), nil, f(0)}},
			Smoothed:  db.Vectors{"position": {f(x * 0.9), nil, f(0)}},
		}
		if i >= 3 {
			rec.Converged = true
			rec.Estimate = make([]float64, 24)
			rec.Estimate[0] = x
			rec.Estimate[3] = 10
		}
		ticks = append(ticks, rec)
	}
	return ticks
}

func TestSeriesOf(t *testing.T) {
	s, err := SeriesOf(sampleTicks(uuid.New()), "position")
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3, 0.4}, roundAll(s.Times))
	assert.Equal(t, 4.0, *s.Raw[0][4])
	assert.Nil(t, s.Raw[1][0], "absent component stays absent")
	assert.False(t, present(s.Raw[1]))
	assert.Nil(t, s.Estimate[0][0], "no estimate before convergence")
	assert.Equal(t, 3.0, *s.Estimate[0][3])

	v, err := SeriesOf(sampleTicks(uuid.New()), "velocity")
	require.NoError(t, err)
	assert.False(t, present(v.Raw[0]), "velocity is never measured")
	assert.Equal(t, 10.0, *v.Estimate[0][4])
}

func roundAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(int(x*1000+0.5)) / 1000
	}
	return out
}

func TestSeriesOf_Errors(t *testing.T) {
	_, err := SeriesOf(sampleTicks(uuid.New()), "temperature")
	assert.Error(t, err)
	_, err = SeriesOf(nil, "position")
	assert.ErrorIs(t, err, ErrNoTicks)
	assert.Len(t, Quantities(), 8)
}

func TestPlotRun_WritesPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PlotRun(&buf, sampleTicks(uuid.New()), "position"))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dy(), img.Bounds().Dx()/2, "three stacked panels")
}

type fakeStore struct {
	runs  []db.Run
	ticks map[uuid.UUID][]db.TickRecord
	err   error
}

func (s fakeStore) Runs(int) ([]db.Run, error) { return s.runs, s.err }
func (s fakeStore) Ticks(id uuid.UUID) ([]db.TickRecord, error) {
	return s.ticks[id], s.err
}

func TestChartHandler(t *testing.T) {
	run := uuid.New()
	store := fakeStore{
		runs:  []db.Run{{ID: run}},
		ticks: map[uuid.UUID][]db.TickRecord{run: sampleTicks(run)},
	}
	h := ChartHandler(store)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "position x")
	assert.Contains(t, body, run.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart?format=png&run="+run.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestChartHandler_Errors(t *testing.T) {
	run := uuid.New()
	tests := []struct {
		name  string
		store fakeStore
		url   string
		code  int
	}{
		{"no runs", fakeStore{}, "/api/chart", http.StatusNotFound},
		{"bad id", fakeStore{}, "/api/chart?run=nope", http.StatusBadRequest},
		{"empty run", fakeStore{}, "/api/chart?run=" + run.String(), http.StatusNotFound},
		{"bad quantity", fakeStore{ticks: map[uuid.UUID][]db.TickRecord{run: sampleTicks(run)}},
			"/api/chart?quantity=heat&run=" + run.String(), http.StatusBadRequest},
		{"store failure", fakeStore{err: errors.New("disk")}, "/api/chart?run=" + run.String(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ChartHandler(tt.store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	ChartHandler(fakeStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chart", strings.NewReader("")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
