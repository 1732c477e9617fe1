package report

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fsutil"
)

func TestExportRun(t *testing.T) {
	run := uuid.New()
	store := fakeStore{ticks: map[uuid.UUID][]db.TickRecord{run: sampleTicks(run)}}
	fsys := fsutil.NewMemoryFileSystem()

	paths, err := ExportRun(fsys, store, "/exports", run, "position")
	require.NoError(t, err)
	require.Equal(t, []string{"/exports/" + run.String() + "-position.png"}, paths)

	data, ok := fsys.ReadFile(paths[0])
	require.True(t, ok)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestExportRunAllQuantities(t *testing.T) {
	run := uuid.New()
	ticks := sampleTicks(run)
	for i := range ticks {
		ticks[i].Estimate = nil
	}
	store := fakeStore{ticks: map[uuid.UUID][]db.TickRecord{run: ticks}}
	fsys := fsutil.NewMemoryFileSystem()

	paths, err := ExportRun(fsys, store, "/exports", run)
	require.NoError(t, err)
	assert.Equal(t, []string{"/exports/" + run.String() + "-position.png"}, paths, "only quantities with samples")
}

func TestExportRunErrors(t *testing.T) {
	run := uuid.New()
	fsys := fsutil.NewMemoryFileSystem()

	_, err := ExportRun(fsys, fakeStore{}, "/exports", run)
	assert.ErrorIs(t, err, ErrNoTicks)

	disk := errors.New("disk")
	_, err = ExportRun(fsys, fakeStore{err: disk}, "/exports", run)
	assert.ErrorIs(t, err, disk)

	store := fakeStore{ticks: map[uuid.UUID][]db.TickRecord{run: sampleTicks(run)}}
	_, err = ExportRun(fsys, store, "/exports", run, "mass")
	assert.Error(t, err)
	assert.Empty(t, fsys.Files(), "nothing written for a failed plot")
}
