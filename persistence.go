package pda

import (
	"github.com/shimmeringbee/persistence"
)

const ProductInformationSection = "ProductInformation"
const DataSection = "data"

func (g *Gateway) sectionForDevice() persistence.Section {
	return g.section.Section("device", g.coordinator.UniqueID())
}

func (g *Gateway) sectionForCapability(name string) persistence.Section {
	return g.sectionForDevice().Section("capability", name)
}

func (g *Gateway) sectionRemoveCapability(name string) bool {
	return g.sectionForDevice().Section("capability").SectionDelete(name)
}

func (g *Gateway) capabilityListFromPersistence() []string {
	return g.sectionForDevice().Section("capability").SectionKeys()
}
