package pda

import (
	"context"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/shimmeringbee/pda/implcaps/projector/number"
)

type setRequest struct {
	ctx    context.Context
	number *number.Implementation
	value  float64
	result chan error
}

// coordinatorUpdated is called from the coordinators goroutine, it only signals the loop. Signals are coalesced,
// the loop always reads the latest snapshot.
func (g *Gateway) coordinatorUpdated(_ context.Context, _ coordinator.Updated) error {
	select {
	case g.updates <- struct{}{}:
	default:
	}

	return nil
}

// loop is the only goroutine that operates numbers once the gateway has started.
func (g *Gateway) loop() {
	defer close(g.loopDone)

	for {
		select {
		case <-g.ctx.Done():
			g.logger.Info(g.ctx, "Gateway loop terminating due to cancelled context.")
			return
		case <-g.updates:
			g.handleSnapshotUpdate()
		case r := <-g.requests:
			r.result <- r.number.SetValue(r.ctx, r.value)
		}
	}
}

func (g *Gateway) handleSnapshotUpdate() {
	ctx, end := g.logger.Segment(g.ctx, "Handling projector update.", logwrap.Datum("PowerStatus", g.coordinator.PowerStatus().String()), logwrap.Datum("LastUpdateSuccess", g.coordinator.LastUpdateSuccess()))
	defer end()

	for _, n := range g.numbers {
		n.HandleSnapshotUpdate(ctx)
	}
}

// SetValue asks the number for command to move to value, it blocks until stepping and the following refresh have
// completed.
func (g *Gateway) SetValue(ctx context.Context, command string, value float64) error {
	if !g.isStarted() {
		return ErrNotStarted
	}

	n, found := g.Number(command)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	r := setRequest{ctx: ctx, number: n, value: value, result: make(chan error, 1)}

	select {
	case g.requests <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.ctx.Done():
		return ErrNotStarted
	}

	select {
	case err := <-r.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
