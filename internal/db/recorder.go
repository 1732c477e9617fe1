package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

// StateSource is the part of the pipeline a Recorder listens to.
type StateSource interface {
	Subscribe() (string, <-chan *fusion.State)
	Unsubscribe(string)
	TickInterval() time.Duration
}

// Recorder persists pipeline states as one run.
type Recorder struct {
	db       *DB
	clock    timeutil.Clock
	batch    int
	interval time.Duration
}

// NewRecorder batches up to 64 ticks and flushes at least once a second.
func NewRecorder(db *DB, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: db, clock: clock, batch: 64, interval: time.Second}
}

// Record stores every state src publishes until ctx ends or src closes
// the subscription. The run is ended and its id returned.
func (r *Recorder) Record(ctx context.Context, src StateSource, source, notes string) (uuid.UUID, error) {
	id, states := src.Subscribe()
	defer src.Unsubscribe(id)

	run, err := r.db.StartRun(source, notes, src.TickInterval(), r.clock.Now())
	if err != nil {
		return uuid.Nil, err
	}
	logf("recording run %s from %s", run, source)

	flush := r.clock.NewTicker(r.interval)
	defer flush.Stop()

	pending := make([]TickRecord, 0, r.batch)
	write := func() {
		if err := r.db.InsertTicks(pending); err != nil {
			logf("run %s: dropped %d ticks: %v", run, len(pending), err)
		}
		pending = pending[:0]
	}

	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
			pending = drain(states, run, pending)
		case st, ok := <-states:
			if !ok {
				done = true
				break
			}
			pending = append(pending, TickFromState(run, st))
			if len(pending) >= r.batch {
				write()
			}
		case <-flush.C():
			write()
		}
	}
	write()

	if err := r.db.EndRun(run, r.clock.Now()); err != nil {
		return run, err
	}
	return run, nil
}

// drain appends the states already buffered on the subscription.
func drain(states <-chan *fusion.State, run uuid.UUID, pending []TickRecord) []TickRecord {
	for {
		select {
		case st, ok := <-states:
			if !ok {
				return pending
			}
			pending = append(pending, TickFromState(run, st))
		default:
			return pending
		}
	}
}
