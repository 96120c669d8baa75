package pda

import (
	"context"
	"github.com/shimmeringbee/logwrap"
)

func (g *Gateway) sendEvent(e any) {
	select {
	case g.events <- e:
	default:
		g.logger.Warn(g.ctx, "Could not send event, channel buffer full.", logwrap.Datum("Event", e))
	}
}

func (g *Gateway) ReadEvent(ctx context.Context) (any, error) {
	select {
	case e := <-g.events:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
