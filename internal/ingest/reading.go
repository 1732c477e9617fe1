// Package ingest adapts external sensor feeds into Readings for the
// fusion pipeline. Each adapter decodes the same line-oriented JSON
// record format from a different transport.
package ingest

import (
	"time"

	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/snapshot"
)

// Source identifies an independently clocked sensor feed.
type Source string

const (
	SourceGeolocation Source = "geolocation"
	SourceMotion      Source = "motion"
	SourceOrientation Source = "orientation"
)

// Sources lists the known feeds.
var Sources = []Source{SourceGeolocation, SourceMotion, SourceOrientation}

// Valid reports whether s is a known feed.
func (s Source) Valid() bool {
	for _, k := range Sources {
		if s == k {
			return true
		}
	}
	return false
}

// Reading is one sample from one source. Quantities holds raw component
// maps keyed by snapshot quantity name; a component missing from a map
// is absent, not zero.
type Reading struct {
	Source     Source
	Timestamp  time.Time
	Quantities map[string]quantity.Raw
}

// Position returns the raw position sample, if present.
func (r Reading) Position() (quantity.Raw, bool) {
	p, ok := r.Quantities[snapshot.Position]
	return p, ok
}

// Sink receives decoded readings.
type Sink interface {
	Submit(Reading)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Reading)

func (f SinkFunc) Submit(r Reading) { f(r) }
