package coordinator

import (
	"context"
	"errors"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"io"
	"testing"
	"time"
)

func TestCoordinator_New(t *testing.T) {
	t.Run("has no data and has not updated successfully before first refresh", func(t *testing.T) {
		c := New(&MockProjector{}, "PJ1")

		assert.Equal(t, "PJ1", c.UniqueID())
		assert.Nil(t, c.Data())
		assert.False(t, c.LastUpdateSuccess())
		assert.Equal(t, PowerStatusUnknown, c.PowerStatus())
	})
}

func TestCoordinator_Track(t *testing.T) {
	t.Run("tracked commands are deduplicated and keep their order", func(t *testing.T) {
		c := New(&MockProjector{}, "PJ1")

		c.Track("bri", "con")
		c.Track("con", "keyst")

		assert.Equal(t, []string{"bri", "con", "keyst"}, c.trackedCommands())
	})
}

func TestCoordinator_FirstRefresh(t *testing.T) {
	t.Run("connects, reads product information and populates the snapshot", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		pi := capabilities.ProductInfo{Manufacturer: "BenQ", Name: "W1070"}

		mp.On("Connect", mock.Anything).Return(nil)
		mp.On("ProductInfo", mock.Anything).Return(pi, nil)
		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOn, nil)
		mp.On("Query", mock.Anything, "bri").Return("50", nil)
		mp.On("Query", mock.Anything, "con").Return("40", nil)

		c := New(mp, "PJ1")
		c.Track("bri", "con")

		var updates []Updated
		c.AddListener(func(_ context.Context, u Updated) error {
			updates = append(updates, u)
			return nil
		})

		err := c.FirstRefresh(context.Background())
		assert.NoError(t, err)

		assert.True(t, c.LastUpdateSuccess())
		assert.Equal(t, PowerStatusOn, c.PowerStatus())
		assert.Equal(t, Snapshot{"bri": "50", "con": "40"}, c.Data())
		assert.Equal(t, pi, c.ProductInfo())
		assert.Equal(t, []Updated{{Success: true, PowerStatus: PowerStatusOn}}, updates)
	})

	t.Run("returns an error if the projector cannot be connected to", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("Connect", mock.Anything).Return(io.EOF)

		c := New(mp, "PJ1", WithRetries(1))

		err := c.FirstRefresh(context.Background())
		assert.ErrorIs(t, err, ErrFirstRefreshFailed)
		assert.False(t, c.LastUpdateSuccess())
	})

	t.Run("returns an error if the first poll fails", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("Connect", mock.Anything).Return(nil)
		mp.On("ProductInfo", mock.Anything).Return(capabilities.ProductInfo{}, nil)
		mp.On("PowerStatus", mock.Anything).Return(PowerStatusUnknown, io.EOF)

		c := New(mp, "PJ1", WithRetries(1))

		err := c.FirstRefresh(context.Background())
		assert.ErrorIs(t, err, ErrFirstRefreshFailed)
		assert.Nil(t, c.Data())
	})
}

func TestCoordinator_Refresh(t *testing.T) {
	t.Run("does not query settings while the projector is off", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOff, nil)

		c := New(mp, "PJ1")
		c.Track("bri")

		err := c.Refresh(context.Background())
		assert.NoError(t, err)

		assert.True(t, c.LastUpdateSuccess())
		assert.Equal(t, PowerStatusOff, c.PowerStatus())
		assert.Equal(t, Snapshot{}, c.Data())
		mp.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	})

	t.Run("omits settings the projector failed to answer", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusPoweringOn, nil)
		mp.On("Query", mock.Anything, "bri").Return("", io.EOF)
		mp.On("Query", mock.Anything, "con").Return("12", nil)

		c := New(mp, "PJ1")
		c.Track("bri", "con")

		err := c.Refresh(context.Background())
		assert.NoError(t, err)

		_, found := c.Data().Get("bri")
		assert.False(t, found)

		v, found := c.Data().Get("con")
		assert.True(t, found)
		assert.Equal(t, "12", v)
	})

	t.Run("retains the previous snapshot and notifies listeners on failure", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOn, nil).Once()
		mp.On("Query", mock.Anything, "bri").Return("50", nil).Once()
		mp.On("PowerStatus", mock.Anything).Return(PowerStatusUnknown, io.EOF)

		c := New(mp, "PJ1", WithRetries(1))
		c.Track("bri")

		var updates []Updated
		c.AddListener(func(_ context.Context, u Updated) error {
			updates = append(updates, u)
			return nil
		})

		assert.NoError(t, c.Refresh(context.Background()))
		assert.Error(t, c.Refresh(context.Background()))

		assert.False(t, c.LastUpdateSuccess())
		assert.Equal(t, Snapshot{"bri": "50"}, c.Data())
		assert.Equal(t, PowerStatusOn, c.PowerStatus())
		assert.Equal(t, []Updated{{Success: true, PowerStatus: PowerStatusOn}, {Success: false, PowerStatus: PowerStatusOn}}, updates)
	})

	t.Run("the power status and snapshot of a poll are replaced together", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOn, nil).Once()
		mp.On("Query", mock.Anything, "bri").Return("50", nil).Once()
		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOff, nil).Once()

		c := New(mp, "PJ1")
		c.Track("bri")

		power, snapshot := c.Current()
		assert.Equal(t, PowerStatusUnknown, power)
		assert.Nil(t, snapshot)

		assert.NoError(t, c.Refresh(context.Background()))
		power, snapshot = c.Current()
		assert.Equal(t, PowerStatusOn, power)
		assert.Equal(t, Snapshot{"bri": "50"}, snapshot)

		assert.NoError(t, c.Refresh(context.Background()))
		power, snapshot = c.Current()
		assert.Equal(t, PowerStatusOff, power)
		assert.Equal(t, Snapshot{}, snapshot)
	})

	t.Run("a failing listener does not fail the refresh", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOff, nil)

		c := New(mp, "PJ1")
		c.AddListener(func(_ context.Context, _ Updated) error {
			return errors.New("listener failure")
		})

		assert.NoError(t, c.Refresh(context.Background()))
		assert.True(t, c.LastUpdateSuccess())
	})
}

func TestCoordinator_SendCommand(t *testing.T) {
	t.Run("passes the command to the projector and returns its reply", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("Send", mock.Anything, "bri", ActionIncrement).Return("+", nil)

		c := New(mp, "PJ1")

		resp, err := c.SendCommand(context.Background(), "bri", ActionIncrement)
		assert.NoError(t, err)
		assert.Equal(t, "+", resp)
	})

	t.Run("returns transport errors without retrying", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("Send", mock.Anything, "bri", ActionDecrement).Return("", io.EOF).Once()

		c := New(mp, "PJ1")

		_, err := c.SendCommand(context.Background(), "bri", ActionDecrement)
		assert.ErrorIs(t, err, io.EOF)
		mp.AssertNumberOfCalls(t, "Send", 1)
	})
}

func TestCoordinator_Poller(t *testing.T) {
	t.Run("refreshes periodically until stopped", func(t *testing.T) {
		mp := &MockProjector{}
		defer mp.AssertExpectations(t)

		mp.On("PowerStatus", mock.Anything).Return(PowerStatusOff, nil)

		c := New(mp, "PJ1", WithInterval(5*time.Millisecond))

		refreshed := make(chan struct{}, 100)
		c.AddListener(func(_ context.Context, _ Updated) error {
			refreshed <- struct{}{}
			return nil
		})

		c.Start()

		select {
		case <-refreshed:
		case <-time.After(time.Second):
			assert.Fail(t, "poller did not refresh")
		}

		c.Stop()
		assert.True(t, c.LastUpdateSuccess())
	})
}

func TestPowerStatus(t *testing.T) {
	t.Run("only on and powering on are considered powered", func(t *testing.T) {
		assert.True(t, PowerStatusOn.Powered())
		assert.True(t, PowerStatusPoweringOn.Powered())
		assert.False(t, PowerStatusOff.Powered())
		assert.False(t, PowerStatusPoweringOff.Powered())
		assert.False(t, PowerStatusUnknown.Powered())
	})

	t.Run("has readable names", func(t *testing.T) {
		assert.Equal(t, "PoweringOn", PowerStatusPoweringOn.String())
		assert.Equal(t, "Unknown", PowerStatus(99).String())
	})

	t.Run("can be parsed from names regardless of case", func(t *testing.T) {
		p, err := ParsePowerStatus("on")
		assert.NoError(t, err)
		assert.Equal(t, PowerStatusOn, p)

		p, err = ParsePowerStatus("PoweringOff")
		assert.NoError(t, err)
		assert.Equal(t, PowerStatusPoweringOff, p)

		_, err = ParsePowerStatus("standby")
		assert.Error(t, err)
	})
}
