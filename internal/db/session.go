package db

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrRecording is returned when a session is already recording.
var ErrRecording = errors.New("db: already recording")

// Session records one run at a time from src, started and stopped
// alongside the pipeline's listening state.
type Session struct {
	rec    *Recorder
	src    StateSource
	source string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   uuid.UUID
}

// NewSession records states from src, labelling runs with source.
func NewSession(rec *Recorder, src StateSource, source string) *Session {
	return &Session{rec: rec, src: src, source: source}
}

// Start begins a new run in the background.
func (s *Session) Start(notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrRecording
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		id, err := s.rec.Record(ctx, s.src, s.source, notes)
		if err != nil {
			logf("recording failed: %v", err)
		}
		s.mu.Lock()
		s.last = id
		// A run that never started leaves nothing for Stop to end.
		if id == uuid.Nil && s.done == done {
			s.cancel, s.done = nil, nil
			cancel()
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop ends the current run and waits for its last ticks to be written.
// It returns the finished run's id, or uuid.Nil when nothing was running.
func (s *Session) Stop() uuid.UUID {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return uuid.Nil
	}
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Active reports whether a run is being recorded.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
