package coordinator

import (
	"context"
	"github.com/shimmeringbee/logwrap"
	"time"
)

const pollerMaximumJobDuration = 15 * time.Second

// Start begins periodic polling of the projector at the configured interval.
func (c *Coordinator) Start() {
	if c.pollerStop != nil {
		return
	}

	c.pollerStop = make(chan struct{})
	c.pollerDone = make(chan struct{})

	go c.poller()
}

// Stop halts periodic polling and waits for any in progress refresh to finish.
func (c *Coordinator) Stop() {
	if c.pollerStop == nil {
		return
	}

	close(c.pollerStop)
	<-c.pollerDone

	c.pollerStop = nil
	c.pollerDone = nil
}

func (c *Coordinator) poller() {
	defer close(c.pollerDone)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info(context.Background(), "Polling started.", logwrap.Datum("IntervalMs", c.interval.Milliseconds()))

	for {
		select {
		case <-c.pollerStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), pollerMaximumJobDuration)
			_ = c.Refresh(ctx)
			cancel()
		}
	}
}
