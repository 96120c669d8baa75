package factory

import (
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/pda/implcaps/projector/number"
)

// Numbers creates a number for every descriptor whose command the projector supports, in descriptor order. The
// coordinator must have completed its first refresh, the capability set is only read once.
func Numbers(supported func(string) bool, descriptors []number.Descriptor, iface implcaps.PDAInterface) []*number.Implementation {
	var numbers []*number.Implementation

	for _, d := range descriptors {
		if supported(d.Command) {
			numbers = append(numbers, number.NewNumber(iface, d))
		}
	}

	return numbers
}
