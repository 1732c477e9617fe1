package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// Vectors holds per-quantity component values; nil components are absent.
type Vectors map[string][3]*float64

// TickRecord is the stored form of one pipeline state.
type TickRecord struct {
	RunID       uuid.UUID `json:"run_id"`
	Tick        uint64    `json:"tick"`
	Timestamp   time.Time `json:"timestamp"`
	DeltaT      float64   `json:"delta_t"`
	Converged   bool      `json:"converged"`
	Raw         Vectors   `json:"raw"`
	Smoothed    Vectors   `json:"smoothed,omitempty"`
	State       []float64 `json:"state,omitempty"`
	Estimate    []float64 `json:"estimate,omitempty"`
	EstimateErr string    `json:"estimate_err,omitempty"`
}

// VectorsOf flattens the snapshot's quantities.
func VectorsOf(s *snapshot.Snapshot) Vectors {
	if s == nil {
		return nil
	}
	out := make(Vectors)
	for name, values := range s.Values() {
		out[name] = [3]*float64{values[0].Ptr(), values[1].Ptr(), values[2].Ptr()}
	}
	return out
}

// TickFromState converts a pipeline state for storage under run.
func TickFromState(run uuid.UUID, st *fusion.State) TickRecord {
	rec := TickRecord{
		RunID:     run,
		Tick:      st.Tick,
		Timestamp: st.Timestamp,
		DeltaT:    st.Raw.DeltaT(),
		Converged: st.Converged(),
		Raw:       VectorsOf(st.Raw),
		Smoothed:  VectorsOf(st.Smoothed),
	}
	if rec.Converged {
		rec.State = st.Kinematics.StateVector()
		rec.Estimate = append([]float64(nil), st.Estimate.Mean...)
	}
	if st.EstimateErr != nil {
		rec.EstimateErr = st.EstimateErr.Error()
	}
	return rec
}

// InsertTicks stores records in one transaction.
func (db *DB) InsertTicks(recs []TickRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO ticks (
			run_id, tick, timestamp_ns, delta_t, converged,
			raw_json, smoothed_json, state_json, estimate_json, estimate_err
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		raw, err := json.Marshal(r.Raw)
		if err != nil {
			return fmt.Errorf("tick %d: encode raw: %w", r.Tick, err)
		}
		if _, err := stmt.Exec(
			r.RunID.String(), r.Tick, r.Timestamp.UnixNano(), r.DeltaT, r.Converged,
			string(raw), nullJSON(r.Smoothed), nullJSON(r.State), nullJSON(r.Estimate),
			sql.NullString{String: r.EstimateErr, Valid: r.EstimateErr != ""},
		); err != nil {
			return fmt.Errorf("failed to insert tick %d: %w", r.Tick, err)
		}
	}
	return tx.Commit()
}

// Ticks returns the run's ticks in order.
func (db *DB) Ticks(run uuid.UUID) ([]TickRecord, error) {
	rows, err := db.Query(`SELECT tick, timestamp_ns, delta_t, converged,
			raw_json, smoothed_json, state_json, estimate_json, estimate_err
		FROM ticks WHERE run_id = ? ORDER BY tick`, run.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TickRecord
	for rows.Next() {
		var (
			r                          = TickRecord{RunID: run}
			ts                         int64
			raw                        string
			smoothed, state, est, eErr sql.NullString
		)
		if err := rows.Scan(&r.Tick, &ts, &r.DeltaT, &r.Converged, &raw, &smoothed, &state, &est, &eErr); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		r.EstimateErr = eErr.String
		if err := json.Unmarshal([]byte(raw), &r.Raw); err != nil {
			return nil, fmt.Errorf("tick %d: decode raw: %w", r.Tick, err)
		}
		for _, f := range []struct {
			src sql.NullString
			dst any
		}{{smoothed, &r.Smoothed}, {state, &r.State}, {est, &r.Estimate}} {
			if !f.src.Valid {
				continue
			}
			if err := json.Unmarshal([]byte(f.src.String), f.dst); err != nil {
				return nil, fmt.Errorf("tick %d: decode column: %w", r.Tick, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullJSON(v any) sql.NullString {
	switch x := v.(type) {
	case Vectors:
		if x == nil {
			return sql.NullString{}
		}
	case []float64:
		if x == nil {
			return sql.NullString{}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
