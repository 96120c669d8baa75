package number

const (
	MinValue = 0.0
	Step     = 1.0
)

// Descriptor statically describes a numeric projector setting.
type Descriptor struct {
	Command  string
	Name     string
	Icon     string
	MaxValue int
}

// DefaultDescriptors are the numeric settings offered by serial controlled projectors, in registration order.
var DefaultDescriptors = []Descriptor{
	{Command: "con", Name: "Contrast", Icon: "mdi:contrast", MaxValue: 100},
	{Command: "bri", Name: "Brightness", Icon: "mdi:brightness-6", MaxValue: 100},
	{Command: "color", Name: "Color", Icon: "mdi:palette", MaxValue: 20},
	{Command: "sharp", Name: "Sharpness", MaxValue: 20},
	{Command: "micvol", Name: "Microphone Volume", Icon: "mdi:microphone", MaxValue: 20},
	{Command: "keyst", Name: "Keystone", MaxValue: 20},
}
