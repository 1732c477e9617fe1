package ingest

import (
	"fmt"
	"time"

	"github.com/banshee-data/motion.fusion/internal/config"
)

// AcquisitionHints are passed through to sensor bridges. They mirror the
// geolocation options of the browser API.
type AcquisitionHints struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// HintsFromConfig reads the hint options from cfg.
func HintsFromConfig(cfg *config.FusionConfig) AcquisitionHints {
	return AcquisitionHints{
		EnableHighAccuracy: cfg.GetEnableHighAccuracy(),
		Timeout:            cfg.GetTimeout(),
		MaximumAge:         cfg.GetMaximumAge(),
	}
}

// Commands renders the hints as bridge configuration commands, one per
// line, in the order they should be sent.
func (h AcquisitionHints) Commands() []string {
	accuracy := 0
	if h.EnableHighAccuracy {
		accuracy = 1
	}
	return []string{
		fmt.Sprintf("HA=%d", accuracy),
		fmt.Sprintf("TO=%d", h.Timeout.Milliseconds()),
		fmt.Sprintf("MA=%d", h.MaximumAge.Milliseconds()),
		"OJ", // JSON record output
	}
}

// Payload renders the hints as a JSON object for message brokers.
func (h AcquisitionHints) Payload() []byte {
	return []byte(fmt.Sprintf(`{"enableHighAccuracy":%t,"timeout":%d,"maximumAge":%d}`,
		h.EnableHighAccuracy, h.Timeout.Milliseconds(), h.MaximumAge.Milliseconds()))
}
