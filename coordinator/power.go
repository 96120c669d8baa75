package coordinator

import (
	"fmt"
	"strings"
)

type PowerStatus int

const (
	PowerStatusUnknown PowerStatus = iota
	PowerStatusOff
	PowerStatusPoweringOn
	PowerStatusOn
	PowerStatusPoweringOff
)

var powerStatusNames = map[PowerStatus]string{
	PowerStatusUnknown:     "Unknown",
	PowerStatusOff:         "Off",
	PowerStatusPoweringOn:  "PoweringOn",
	PowerStatusOn:          "On",
	PowerStatusPoweringOff: "PoweringOff",
}

func (p PowerStatus) String() string {
	if n, ok := powerStatusNames[p]; ok {
		return n
	}

	return "Unknown"
}

// Powered returns true if the projector is on or warming up, the only states in which it answers setting
// queries.
func (p PowerStatus) Powered() bool {
	return p == PowerStatusPoweringOn || p == PowerStatusOn
}

// ParsePowerStatus returns the PowerStatus with the given name, names are case insensitive.
func ParsePowerStatus(s string) (PowerStatus, error) {
	for p, n := range powerStatusNames {
		if strings.EqualFold(n, s) {
			return p, nil
		}
	}

	return PowerStatusUnknown, fmt.Errorf("unknown power status: %q", s)
}
