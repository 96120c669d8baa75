package pda

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/pda/implcaps/factory"
)

// removeStaleCapabilities detaches capabilities found in persistence from a previous run that were not enumerated
// in this one, such as a setting the projector no longer supports or a rule now removes.
func (g *Gateway) removeStaleCapabilities(pctx context.Context, enumerated map[string]bool) {
	ctx, end := g.logger.Segment(pctx, "Removing stale capabilities.")
	defer end()

	for _, cName := range g.capabilityListFromPersistence() {
		if enumerated[cName] {
			continue
		}

		cctx, cend := g.logger.Segment(ctx, "Removing capability.", logwrap.Datum("Capability", cName))
		g.detachFromPersistence(cctx, cName)
		cend()
	}
}

func (g *Gateway) detachFromPersistence(ctx context.Context, cName string) {
	cSection := g.sectionForCapability(cName)

	if capImpl, ok := cSection.String(implcaps.ImplementationKey); ok {
		if capI := factory.Create(capImpl, g.pdaInterface); capI == nil {
			g.logger.Error(ctx, "Could not find capability implementation.", logwrap.Datum("Implementation", capImpl))
		} else {
			capI.Init(g.self, cSection.Section(DataSection))

			if _, err := capI.Load(ctx); err != nil {
				g.logger.Warn(ctx, "Error while loading from persistence.", logwrap.Err(err), logwrap.Datum("Implementation", capImpl))
			}

			if err := capI.Detach(ctx, implcaps.NoLongerEnumerated); err != nil {
				g.logger.Warn(ctx, "Error while detaching capability.", logwrap.Err(err), logwrap.Datum("Implementation", capImpl))
			}
		}
	}

	g.sectionRemoveCapability(cName)
}
