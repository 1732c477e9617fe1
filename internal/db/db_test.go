package db

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/ingest"
	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
	"github.com/banshee-data/motion.fusion/internal/testutil"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	testutil.MuteLogs(t)

	db, err := NewDB(filepath.Join(t.TempDir(), "fusion.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// states drives a pipeline until its kinematics converge.
func states(t *testing.T) []*fusion.State {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	p, err := fusion.New(fusion.Options{Clock: clock, TickInterval: time.Second, ProcessNoise: 0.01, ObservationNoise: 0.1, InitialVariance: 1})
	require.NoError(t, err)
	p.StartListening()

	var out []*fusion.State
	for i := 0; i < 10; i++ {
		ts := epoch.Add(time.Duration(i) * time.Second)
		p.Submit(ingest.Reading{Source: ingest.SourceGeolocation, Timestamp: ts,
			Quantities: map[string]quantity.Raw{snapshot.Position: {"x": float64(i), "y": 0, "z": 0}}})
		p.Submit(ingest.Reading{Source: ingest.SourceMotion, Timestamp: ts,
			Quantities: map[string]quantity.Raw{
				snapshot.Acceleration:    {"x": 0, "y": 0, "z": 9.81},
				snapshot.AngularVelocity: {"alpha": 10 * float64(i), "beta": 0, "gamma": 0},
			}})
		p.Submit(ingest.Reading{Source: ingest.SourceOrientation, Timestamp: ts,
			Quantities: map[string]quantity.Raw{snapshot.Orientation: {"alpha": 5 * float64(i*i), "beta": 0, "gamma": 0}}})
		st, ok := p.Tick(ts)
		require.True(t, ok)
		out = append(out, st)
		if st.Converged() {
			return out
		}
	}
	t.Fatal("pipeline never converged")
	return nil
}

func TestNewDB_PragmasAndMigrations(t *testing.T) {
	db := newTestDB(t)

	var journal string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	var fk, busy int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 1, fk)
	assert.Equal(t, 5000, busy)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second up is a no-op")
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fusion.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	id, err := db.StartRun("replay", "", time.Second, epoch)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.GetRun(id)
	assert.NoError(t, err)
}

func TestRuns(t *testing.T) {
	db := newTestDB(t)

	first, err := db.StartRun("serial", "bench", 20*time.Millisecond, epoch)
	require.NoError(t, err)
	second, err := db.StartRun("replay", "", time.Second, epoch.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, db.EndRun(first, epoch.Add(30*time.Second)))

	runs, err := db.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID, "newest first")
	assert.Nil(t, runs[0].EndedAt)

	got, err := db.GetRun(first)
	require.NoError(t, err)
	assert.Equal(t, "bench", got.Notes)
	assert.Equal(t, 20*time.Millisecond, got.TickInterval)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(epoch.Add(30*time.Second)))

	_, err = db.GetRun(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.EndRun(uuid.New(), epoch), ErrRunNotFound)

	require.NoError(t, db.DeleteRun(second))
	assert.ErrorIs(t, db.DeleteRun(second), ErrRunNotFound)
}

func TestTicks_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun("test", "", time.Second, epoch)
	require.NoError(t, err)

	sts := states(t)
	recs := make([]TickRecord, len(sts))
	for i, st := range sts {
		recs[i] = TickFromState(run, st)
	}
	require.NoError(t, db.InsertTicks(recs))

	got, err := db.Ticks(run)
	require.NoError(t, err)
	require.Len(t, got, len(sts))

	first := got[0]
	assert.False(t, first.Converged)
	assert.Nil(t, first.State)
	assert.Equal(t, 0.0, *first.Raw[snapshot.Position][0])

	last := got[len(got)-1]
	assert.True(t, last.Converged)
	require.Len(t, last.State, 24)
	require.Len(t, last.Estimate, 24)
	assert.InDelta(t, 1.0, last.State[3], 1e-9, "velocity x")
	assert.True(t, last.Timestamp.Equal(sts[len(sts)-1].Timestamp))

	r, err := db.GetRun(run)
	require.NoError(t, err)
	assert.Equal(t, len(sts), r.Ticks)

	// ticks go with their run
	require.NoError(t, db.DeleteRun(run))
	got, err = db.Ticks(run)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVectorsOf_AbsentComponents(t *testing.T) {
	s := snapshot.Next(nil, map[string]quantity.Raw{snapshot.Position: {"x": 1}}, epoch)
	v := VectorsOf(s)
	require.NotNil(t, v[snapshot.Position][0])
	assert.Nil(t, v[snapshot.Position][1])
	assert.Nil(t, VectorsOf(nil))
}

type fakeSource struct {
	ch           chan *fusion.State
	unsubscribed bool
}

func (f *fakeSource) Subscribe() (string, <-chan *fusion.State) { return "sub", f.ch }
func (f *fakeSource) Unsubscribe(string)                       { f.unsubscribed = true }
func (f *fakeSource) TickInterval() time.Duration              { return 50 * time.Millisecond }

func TestRecorder(t *testing.T) {
	db := newTestDB(t)
	sts := states(t)
	src := &fakeSource{ch: make(chan *fusion.State, len(sts))}
	for _, st := range sts {
		src.ch <- st
	}
	close(src.ch)

	clock := timeutil.NewMockClock(epoch)
	rec := NewRecorder(db, clock)
	rec.batch = 2

	run, err := rec.Record(context.Background(), src, "replay", "unit")
	require.NoError(t, err)
	assert.True(t, src.unsubscribed)

	r, err := db.GetRun(run)
	require.NoError(t, err)
	assert.Equal(t, len(sts), r.Ticks)
	assert.Equal(t, 50*time.Millisecond, r.TickInterval)
	assert.NotNil(t, r.EndedAt)
}

func TestRecorder_StopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	src := &fakeSource{ch: make(chan *fusion.State)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewRecorder(db, timeutil.NewMockClock(epoch)).Record(ctx, src, "serial", "")
	require.NoError(t, err)
	r, err := db.GetRun(run)
	require.NoError(t, err)
	assert.Zero(t, r.Ticks)
}

func TestBackupRoute(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	rec := testutil.Serve(mux, testutil.NewLocalRequest(http.MethodGet, "/debug/backup", nil))
	testutil.AssertStatusCode(t, rec, http.StatusOK)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	assert.Greater(t, rec.Body.Len(), 0)
}

func TestBackup(t *testing.T) {
	db := newTestDB(t)
	dst := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.Backup(dst))

	copied, err := NewDB(dst)
	require.NoError(t, err)
	defer copied.Close()
	v, _, err := copied.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestSession(t *testing.T) {
	db := newTestDB(t)
	src := &fakeSource{ch: make(chan *fusion.State, 4)}
	s := NewSession(NewRecorder(db, timeutil.NewMockClock(epoch)), src, "serial")

	assert.Equal(t, uuid.Nil, s.Stop(), "stop before start is a no-op")
	require.NoError(t, s.Start("bench"))
	assert.True(t, s.Active())
	assert.ErrorIs(t, s.Start("again"), ErrRecording)

	run := s.Stop()
	assert.False(t, s.Active())
	require.NotEqual(t, uuid.Nil, run)

	r, err := db.GetRun(run)
	require.NoError(t, err)
	assert.Equal(t, "bench", r.Notes)
	assert.NotNil(t, r.EndedAt)
}

func TestSession_StartRunFailureClearsActive(t *testing.T) {
	db := newTestDB(t)
	src := &fakeSource{ch: make(chan *fusion.State, 4)}
	s := NewSession(NewRecorder(db, timeutil.NewMockClock(epoch)), src, "serial")
	require.NoError(t, db.DB.Close())

	require.NoError(t, s.Start("doomed"))
	assert.Eventually(t, func() bool { return !s.Active() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uuid.Nil, s.Stop())
	assert.NoError(t, s.Start("retry"), "a failed run does not block the next one")
	s.Stop()
}
