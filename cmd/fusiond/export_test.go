package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/testutil"
)

func seedRun(t *testing.T, path string) string {
	t.Helper()
	database, err := db.NewDB(path)
	require.NoError(t, err)
	defer database.Close()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run, err := database.StartRun("replay", "", 100*time.Millisecond, start)
	require.NoError(t, err)
	var ticks []db.TickRecord
	for i := 0; i < 4; i++ {
		x := float64(i)
		ticks = append(ticks, db.TickRecord{
			RunID:     run,
			Tick:      uint64(i + 1),
			Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond),
			Raw:       db.Vectors{"position": {&x, nil, nil}},
		})
	}
	require.NoError(t, database.InsertTicks(ticks))
	require.NoError(t, database.EndRun(run, start.Add(time.Second)))
	return run.String()
}

func TestRunExport(t *testing.T) {
	testutil.MuteLogs(t)
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "fusion.db")
	run := seedRun(t, dbFile)
	out := filepath.Join(dir, "plots")

	var stdout bytes.Buffer
	require.NoError(t, runExport([]string{"-db", dbFile, "-out", out}, &stdout))
	assert.Equal(t, filepath.Join(out, run+"-position.png"), strings.TrimSpace(stdout.String()))

	stdout.Reset()
	require.NoError(t, runExport([]string{"-db", dbFile, "-out", out, "-run", run, "-quantity", "position"}, &stdout))
	assert.Len(t, strings.Fields(stdout.String()), 1)
}

func TestRunExportErrors(t *testing.T) {
	testutil.MuteLogs(t)
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "fusion.db")

	assert.ErrorIs(t, runExport([]string{"-db", dbFile, "-out", dir}, &bytes.Buffer{}), db.ErrRunNotFound)
	assert.Error(t, runExport([]string{"-db", dbFile, "-out", dir, "-run", "nope"}, &bytes.Buffer{}))
	assert.Error(t, runExport([]string{"-db", dbFile, "-out", "/etc/plots"}, &bytes.Buffer{}))
	assert.Error(t, runExport([]string{"-bogus"}, &bytes.Buffer{}))
}
