package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/motion.fusion/internal/quantity"
)

// DefaultConfigPath is the path to the canonical fusion defaults file.
const DefaultConfigPath = "config/fusion.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// FusionConfig is the root configuration of the fusion daemon. Every field
// is optional; the Get* methods supply defaults for omitted values.
type FusionConfig struct {
	// Tick and smoothing
	RefreshRateHz     *float64 `json:"refresh_rate_hz,omitempty"`
	SmoothingEnabled  *bool    `json:"smoothing_enabled,omitempty"`
	SmoothingCutoffHz *float64 `json:"smoothing_cutoff_hz,omitempty"`

	// Kalman estimator
	KalmanProcessNoise     *float64 `json:"kalman_process_noise,omitempty"`
	KalmanObservationNoise *float64 `json:"kalman_observation_noise,omitempty"`
	KalmanInitialVariance  *float64 `json:"kalman_initial_variance,omitempty"`

	// Position handling
	GeodeticDisplacement *bool `json:"geodetic_displacement,omitempty"`

	// Acquisition hints passed through to sensor bridges
	EnableHighAccuracy *bool   `json:"enable_high_accuracy,omitempty"`
	Timeout            *string `json:"timeout,omitempty"`     // duration string like "5s"
	MaximumAge         *string `json:"maximum_age,omitempty"` // duration string like "0s"

	// Rename maps a quantity name to extra component aliases
	// (external field → canonical component), e.g.
	// {"orientation": {"heading": "z"}}.
	Rename map[string]map[string]string `json:"rename,omitempty"`

	// Serial IMU bridge
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`

	// MQTT bridge
	MQTTBroker *string `json:"mqtt_broker,omitempty"`
	MQTTTopic  *string `json:"mqtt_topic,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyFusionConfig returns a FusionConfig with all fields unset.
func EmptyFusionConfig() *FusionConfig {
	return &FusionConfig{}
}

// DefaultFusionConfig returns a FusionConfig with every field populated
// from the Get* defaults.
func DefaultFusionConfig() *FusionConfig {
	c := EmptyFusionConfig()
	return &FusionConfig{
		RefreshRateHz:          ptrFloat64(c.GetRefreshRateHz()),
		SmoothingEnabled:       ptrBool(c.GetSmoothingEnabled()),
		SmoothingCutoffHz:      ptrFloat64(c.GetSmoothingCutoffHz()),
		KalmanProcessNoise:     ptrFloat64(c.GetKalmanProcessNoise()),
		KalmanObservationNoise: ptrFloat64(c.GetKalmanObservationNoise()),
		KalmanInitialVariance:  ptrFloat64(c.GetKalmanInitialVariance()),
		GeodeticDisplacement:   ptrBool(c.GetGeodeticDisplacement()),
		EnableHighAccuracy:     ptrBool(c.GetEnableHighAccuracy()),
		Timeout:                ptrString(c.GetTimeout().String()),
		MaximumAge:             ptrString(c.GetMaximumAge().String()),
		SerialBaudRate:         ptrInt(c.GetSerialBaudRate()),
		SerialDataBits:         ptrInt(c.GetSerialDataBits()),
		SerialStopBits:         ptrInt(c.GetSerialStopBits()),
		SerialParity:           ptrString(c.GetSerialParity()),
		MQTTTopic:              ptrString(c.GetMQTTTopic()),
	}
}

// LoadFusionConfig loads a FusionConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to the Get* defaults, so partial configs are safe.
func LoadFusionConfig(path string) (*FusionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFusionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the
// current directory up towards the repository root. Intended for tests.
func MustLoadDefaultConfig() *FusionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/filter/iir/
	}
	for _, path := range candidates {
		if cfg, err := LoadFusionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are usable.
func (c *FusionConfig) Validate() error {
	if c.RefreshRateHz != nil && *c.RefreshRateHz <= 0 {
		return fmt.Errorf("refresh_rate_hz must be positive, got %f", *c.RefreshRateHz)
	}
	if c.SmoothingCutoffHz != nil && *c.SmoothingCutoffHz <= 0 {
		return fmt.Errorf("smoothing_cutoff_hz must be positive, got %f", *c.SmoothingCutoffHz)
	}
	for name, v := range map[string]*float64{
		"kalman_process_noise":     c.KalmanProcessNoise,
		"kalman_observation_noise": c.KalmanObservationNoise,
		"kalman_initial_variance":  c.KalmanInitialVariance,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, *v)
		}
	}
	for name, v := range map[string]*string{
		"timeout":     c.Timeout,
		"maximum_age": c.MaximumAge,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}
	for name, aliases := range c.Rename {
		kind, ok := quantity.KindByName(name)
		if !ok {
			return fmt.Errorf("rename: unknown quantity %q", name)
		}
		desc := quantity.DescriptorFor(kind)
		for from, to := range aliases {
			if !hasComponent(desc, to) {
				return fmt.Errorf("rename: %s.%s maps to unknown component %q", name, from, to)
			}
		}
	}
	return nil
}

func hasComponent(d quantity.Descriptor, name string) bool {
	for _, c := range d.Components {
		if c == name {
			return true
		}
	}
	return false
}

// Descriptors returns the per-quantity descriptors with Rename applied,
// keyed by quantity name. Quantities without overrides are omitted.
func (c *FusionConfig) Descriptors() map[string]quantity.Descriptor {
	out := make(map[string]quantity.Descriptor, len(c.Rename))
	for name, aliases := range c.Rename {
		kind, ok := quantity.KindByName(name)
		if !ok {
			continue
		}
		out[name] = quantity.DescriptorFor(kind).WithAliases(aliases)
	}
	return out
}

// GetRefreshRateHz returns the fallback tick rate used until sources
// report their own rates.
func (c *FusionConfig) GetRefreshRateHz() float64 {
	if c.RefreshRateHz == nil {
		return 60
	}
	return *c.RefreshRateHz
}

// GetTickInterval converts GetRefreshRateHz into a tick period.
func (c *FusionConfig) GetTickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.GetRefreshRateHz())
}

func (c *FusionConfig) GetSmoothingEnabled() bool {
	if c.SmoothingEnabled == nil {
		return true
	}
	return *c.SmoothingEnabled
}

func (c *FusionConfig) GetSmoothingCutoffHz() float64 {
	if c.SmoothingCutoffHz == nil {
		return 5
	}
	return *c.SmoothingCutoffHz
}

func (c *FusionConfig) GetKalmanProcessNoise() float64 {
	if c.KalmanProcessNoise == nil {
		return 0.01
	}
	return *c.KalmanProcessNoise
}

func (c *FusionConfig) GetKalmanObservationNoise() float64 {
	if c.KalmanObservationNoise == nil {
		return 0.1
	}
	return *c.KalmanObservationNoise
}

func (c *FusionConfig) GetKalmanInitialVariance() float64 {
	if c.KalmanInitialVariance == nil {
		return 1
	}
	return *c.KalmanInitialVariance
}

// GetGeodeticDisplacement reports whether latitude/longitude/altitude
// positions are converted to metres from the first fix.
func (c *FusionConfig) GetGeodeticDisplacement() bool {
	if c.GeodeticDisplacement == nil {
		return false
	}
	return *c.GeodeticDisplacement
}

func (c *FusionConfig) GetEnableHighAccuracy() bool {
	if c.EnableHighAccuracy == nil {
		return true
	}
	return *c.EnableHighAccuracy
}

// GetTimeout parses Timeout, defaulting to 5s.
func (c *FusionConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 5*time.Second)
}

// GetMaximumAge parses MaximumAge, defaulting to 0 (no cached fixes).
func (c *FusionConfig) GetMaximumAge() time.Duration {
	return parseDurationOr(c.MaximumAge, 0)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

func (c *FusionConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

func (c *FusionConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

func (c *FusionConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

func (c *FusionConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

func (c *FusionConfig) GetSerialParity() string {
	if c.SerialParity == nil {
		return "N"
	}
	return *c.SerialParity
}

func (c *FusionConfig) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

func (c *FusionConfig) GetMQTTTopic() string {
	if c.MQTTTopic == nil {
		return "motion/+/readings"
	}
	return *c.MQTTTopic
}
