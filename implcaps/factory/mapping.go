package factory

import (
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/pda/implcaps/generic/product_information"
	"github.com/shimmeringbee/pda/implcaps/projector/number"
)

const GenericProductInformation = "GenericProductInformation"
const ProjectorNumber = "ProjectorNumber"

var Mapping = map[string]da.Capability{
	GenericProductInformation: capabilities.ProductInformationFlag,
	ProjectorNumber:           capabilities.LevelFlag,
}

// Create constructs an empty capability by implementation name, it is expected to be followed by Init and Load to
// restore it from persistence.
func Create(name string, iface implcaps.PDAInterface) implcaps.PDACapability {
	switch name {
	case GenericProductInformation:
		return product_information.NewProductInformation()
	case ProjectorNumber:
		return number.NewNumber(iface, number.Descriptor{})
	default:
		return nil
	}
}
