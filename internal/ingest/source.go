package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"time"

	"github.com/banshee-data/motion.fusion/internal/monitoring"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

var logf = monitoring.Prefixed("ingest")

// maxRecordSize bounds one JSON line.
const maxRecordSize = 64 * 1024

// Runner feeds a Sink until its transport ends or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, sink Sink) error
}

// deliver decodes every line in data and submits the readings. Malformed
// lines are logged and skipped. It returns the number submitted.
func deliver(sink Sink, data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		r, err := DecodeRecord(line)
		if err != nil {
			logf("dropping record: %v", err)
			continue
		}
		sink.Submit(r)
		n++
	}
	return n
}

// newScanner returns a line scanner sized for records.
func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxRecordSize)
	return s
}

// pacer sleeps on a clock so consecutive timestamps are replayed with
// their original spacing.
type pacer struct {
	clock timeutil.Clock
	last  time.Time
}

// wait blocks until ts is due relative to the previous call.
func (p *pacer) wait(ctx context.Context, ts time.Time) error {
	if p == nil || ts.IsZero() {
		return nil
	}
	defer func() { p.last = ts }()
	if p.last.IsZero() || !ts.After(p.last) {
		return nil
	}
	t := p.clock.NewTimer(ts.Sub(p.last))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
