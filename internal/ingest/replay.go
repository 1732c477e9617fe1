package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

// ReplaySource reads JSON line records from a file or stream.
type ReplaySource struct {
	r     io.Reader
	pacer *pacer
}

// NewReplaySource replays records from r as fast as they can be read.
func NewReplaySource(r io.Reader) *ReplaySource {
	return &ReplaySource{r: r}
}

// Paced replays with the original spacing of record timestamps.
func (s *ReplaySource) Paced(clock timeutil.Clock) *ReplaySource {
	s.pacer = &pacer{clock: clock}
	return s
}

// Run submits every record to sink. It returns nil at end of input.
func (s *ReplaySource) Run(ctx context.Context, sink Sink) error {
	scan := newScanner(s.r)
	line := 0
	for scan.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(bytes.TrimSpace(scan.Bytes())) == 0 {
			continue
		}
		r, err := DecodeRecord(scan.Bytes())
		if err != nil {
			logf("replay line %d: %v", line, err)
			continue
		}
		if err := s.pacer.wait(ctx, r.Timestamp); err != nil {
			return err
		}
		sink.Submit(r)
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("replay line %d: %w", line+1, err)
	}
	return nil
}
