package ingest

import (
	"sync"
	"testing"

	"github.com/banshee-data/motion.fusion/internal/testutil"
)

// collector is a Sink that records every reading.
type collector struct {
	mu       sync.Mutex
	readings []Reading
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 128)}
}

func (c *collector) Submit(r Reading) {
	c.mu.Lock()
	c.readings = append(c.readings, r)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *collector) Readings() []Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reading(nil), c.readings...)
}

func (c *collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readings)
}

func muteLogs(t *testing.T) { testutil.MuteLogs(t) }
