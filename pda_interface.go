package pda

import (
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/implcaps"
)

var _ implcaps.PDAInterface = (*pdaInterface)(nil)

type pdaInterface struct {
	gw *Gateway
}

func (p pdaInterface) Logger() logwrap.Logger {
	return p.gw.logger
}

func (p pdaInterface) Coordinator() implcaps.Coordinator {
	return p.gw.coordinator
}

func (p pdaInterface) SendEvent(a any) {
	p.gw.sendEvent(a)
}
