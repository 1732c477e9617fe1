package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("db: run not found")

// Run is one listening session: from StartListening to StopListening.
type Run struct {
	ID           uuid.UUID     `json:"id"`
	Source       string        `json:"source"`
	Notes        string        `json:"notes,omitempty"`
	TickInterval time.Duration `json:"tick_interval"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	Ticks        int           `json:"ticks"`
}

// StartRun creates a run record and returns its id.
func (db *DB) StartRun(source, notes string, interval time.Duration, at time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, source, notes, tick_interval_ms, started_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), source, notes, float64(interval)/float64(time.Millisecond), at.UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// EndRun stamps the run's end time.
func (db *DB) EndRun(id uuid.UUID, at time.Time) error {
	res, err := db.Exec(`UPDATE runs SET ended_at = ? WHERE run_id = ?`, at.UTC(), id.String())
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

const runColumns = `r.run_id, r.source, r.notes, r.tick_interval_ms, r.started_at, r.ended_at,
	(SELECT COUNT(*) FROM ticks t WHERE t.run_id = r.run_id)`

// Runs lists runs, newest first.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run.
func (db *DB) GetRun(id uuid.UUID) (Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return r, err
}

// DeleteRun removes a run and its ticks.
func (db *DB) DeleteRun(id uuid.UUID) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		id       string
		interval float64
		ended    sql.NullTime
	)
	if err := s.Scan(&id, &r.Source, &r.Notes, &interval, &r.StartedAt, &ended, &r.Ticks); err != nil {
		return Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("run id %q: %w", id, err)
	}
	r.ID = parsed
	r.TickInterval = time.Duration(interval * float64(time.Millisecond))
	if ended.Valid {
		t := ended.Time
		r.EndedAt = &t
	}
	return r, nil
}
