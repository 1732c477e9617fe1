package quantity

// Descriptor is the static per-kind configuration: canonical component
// names, the external aliases that map onto them, and whether raw input
// arrives in degrees.
type Descriptor struct {
	Kind           Kind
	Name           string
	DerivativeName string
	Components     [3]string
	Aliases        map[string]string
	UseRadians     bool
	Initial        [3]Value
}

var (
	linearComponents  = [3]string{"x", "y", "z"}
	unknownComponents = [3]Value{None(), None(), None()}
)

var descriptors = map[Kind]Descriptor{
	Position: {
		Kind:           Position,
		Name:           "position",
		DerivativeName: "velocity",
		Components:     linearComponents,
		Aliases:        map[string]string{"longitude": "x", "latitude": "y", "altitude": "z"},
		Initial:        unknownComponents,
	},
	Velocity: {
		Kind:           Velocity,
		Name:           "velocity",
		DerivativeName: "acceleration",
		Components:     linearComponents,
		Initial:        unknownComponents,
	},
	Acceleration: {
		Kind:           Acceleration,
		Name:           "acceleration",
		DerivativeName: "jerk",
		Components:     linearComponents,
		Initial:        unknownComponents,
	},
	Jerk: {
		Kind:       Jerk,
		Name:       "jerk",
		Components: linearComponents,
		Initial:    unknownComponents,
	},
	Orientation: {
		Kind:           Orientation,
		Name:           "orientation",
		DerivativeName: "angularVelocity",
		Components:     linearComponents,
		Aliases: map[string]string{
			"beta": "x", "gamma": "y", "alpha": "z",
			"pitch": "x", "roll": "y", "yaw": "z",
		},
		UseRadians: true,
		Initial:    unknownComponents,
	},
	AngularVelocity: {
		Kind:           AngularVelocity,
		Name:           "angularVelocity",
		DerivativeName: "angularAcceleration",
		Components:     linearComponents,
		Aliases:        map[string]string{"beta": "x", "gamma": "y", "alpha": "z"},
		UseRadians:     true,
		Initial:        unknownComponents,
	},
	AngularAcceleration: {
		Kind:           AngularAcceleration,
		Name:           "angularAcceleration",
		DerivativeName: "angularJerk",
		Components:     linearComponents,
		Initial:        unknownComponents,
	},
	AngularJerk: {
		Kind:       AngularJerk,
		Name:       "angularJerk",
		Components: linearComponents,
		Initial:    unknownComponents,
	},
}

// DescriptorFor returns the descriptor of k.
func DescriptorFor(k Kind) Descriptor {
	return descriptors[k]
}

// WithAliases returns a copy of d whose alias table is extended by
// overrides (external name → canonical component). Overrides naming an
// unknown component are ignored.
func (d Descriptor) WithAliases(overrides map[string]string) Descriptor {
	if len(overrides) == 0 {
		return d
	}
	aliases := make(map[string]string, len(d.Aliases)+len(overrides))
	for k, v := range d.Aliases {
		aliases[k] = v
	}
	for k, v := range overrides {
		if d.componentIndex(v) >= 0 {
			aliases[k] = v
		}
	}
	d.Aliases = aliases
	return d
}

func (d Descriptor) componentIndex(name string) int {
	for i, c := range d.Components {
		if c == name {
			return i
		}
	}
	return -1
}

// resolve maps an external or canonical field name to a component index.
func (d Descriptor) resolve(field string) int {
	if i := d.componentIndex(field); i >= 0 {
		return i
	}
	if canonical, ok := d.Aliases[field]; ok {
		return d.componentIndex(canonical)
	}
	return -1
}
