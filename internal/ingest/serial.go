package ingest

import (
	"context"
	"fmt"

	"github.com/banshee-data/motion.fusion/internal/serialmux"
)

// SerialSource reads records from an IMU bridge behind a serial mux.
type SerialSource struct {
	mux   serialmux.SerialMuxInterface
	hints AcquisitionHints
}

// NewSerialSource subscribes to mux once Run is called.
func NewSerialSource(mux serialmux.SerialMuxInterface, hints AcquisitionHints) *SerialSource {
	return &SerialSource{mux: mux, hints: hints}
}

// Configure sends the acquisition hints to the bridge.
func (s *SerialSource) Configure() error {
	for _, cmd := range s.hints.Commands() {
		if err := s.mux.SendCommand(cmd); err != nil {
			return fmt.Errorf("send %q: %w", cmd, err)
		}
	}
	return nil
}

// Run forwards lines from the mux until ctx ends or the mux closes.
// The caller runs mux.Monitor separately.
func (s *SerialSource) Run(ctx context.Context, sink Sink) error {
	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			deliver(sink, []byte(line))
		}
	}
}
