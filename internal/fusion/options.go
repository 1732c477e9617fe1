package fusion

import (
	"time"

	"github.com/banshee-data/motion.fusion/internal/config"
	"github.com/banshee-data/motion.fusion/internal/quantity"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
)

// Options configure a Pipeline.
type Options struct {
	Clock timeutil.Clock

	// TickInterval is used until a source reports its refresh rate.
	TickInterval time.Duration

	Smoothing bool
	CutoffHz  float64

	ProcessNoise     float64
	ObservationNoise float64
	InitialVariance  float64

	// GeodeticDisplacement converts latitude/longitude/altitude positions
	// into metres east/north/up of the first fix.
	GeodeticDisplacement bool

	// Descriptors override component aliases per quantity name.
	Descriptors map[string]quantity.Descriptor
}

// OptionsFromConfig maps the daemon configuration onto Options.
func OptionsFromConfig(cfg *config.FusionConfig) Options {
	return Options{
		Clock:                timeutil.RealClock{},
		TickInterval:         cfg.GetTickInterval(),
		Smoothing:            cfg.GetSmoothingEnabled(),
		CutoffHz:             cfg.GetSmoothingCutoffHz(),
		ProcessNoise:         cfg.GetKalmanProcessNoise(),
		ObservationNoise:     cfg.GetKalmanObservationNoise(),
		InitialVariance:      cfg.GetKalmanInitialVariance(),
		GeodeticDisplacement: cfg.GetGeodeticDisplacement(),
		Descriptors:          cfg.Descriptors(),
	}
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second / 60
	}
	return o
}
