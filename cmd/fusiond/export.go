package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fsutil"
	"github.com/banshee-data/motion.fusion/internal/report"
	"github.com/banshee-data/motion.fusion/internal/security"
)

// stringList collects a repeated flag.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

// runExport writes PNG plots of one recorded run.
func runExport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("db", "fusion.db", "SQLite database holding the run")
	runID := fs.String("run", "", "Run id (default: newest run)")
	out := fs.String("out", "exports", "Output directory; must be under the working or temp directory")
	var quantities stringList
	fs.Var(&quantities, "quantity", "Quantity to plot, repeatable (default: every quantity with samples)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := security.ValidateExportPath(*out); err != nil {
		return err
	}
	database, err := db.NewDB(*path)
	if err != nil {
		return err
	}
	defer database.Close()

	var run uuid.UUID
	if *runID == "" {
		runs, err := database.Runs(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return db.ErrRunNotFound
		}
		run = runs[0].ID
	} else {
		if run, err = uuid.Parse(*runID); err != nil {
			return fmt.Errorf("invalid run id %q: %w", *runID, err)
		}
		if _, err := database.GetRun(run); err != nil {
			return err
		}
	}

	paths, err := report.ExportRun(fsutil.OSFileSystem{}, database, *out, run, quantities...)
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return err
}
