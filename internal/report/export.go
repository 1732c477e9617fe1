package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/fsutil"
	"github.com/banshee-data/motion.fusion/internal/security"
)

// ExportRun writes one PNG per quantity of run into dir and returns the
// written paths. An empty quantities list exports every quantity present.
func ExportRun(fsys fsutil.FileSystem, store RunStore, dir string, run uuid.UUID, quantities ...string) ([]string, error) {
	ticks, err := store.Ticks(run)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, ErrNoTicks
	}
	if len(quantities) == 0 {
		for _, q := range Quantities() {
			if s, err := SeriesOf(ticks, q); err == nil && !s.Empty() {
				quantities = append(quantities, q)
			}
		}
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, q := range quantities {
		var buf bytes.Buffer
		if err := PlotRun(&buf, ticks, q); err != nil {
			return paths, err
		}
		name := security.SanitizeFilename(fmt.Sprintf("%s-%s", run, q)) + ".png"
		path := filepath.Join(dir, name)
		w, err := fsys.Create(path)
		if err != nil {
			return paths, err
		}
		if _, err := buf.WriteTo(w); err != nil {
			w.Close()
			return paths, err
		}
		if err := w.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
