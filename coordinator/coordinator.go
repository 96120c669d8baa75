package coordinator

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/retry"
	"golang.org/x/sync/semaphore"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultPollInterval = 30 * time.Second
const DefaultDeviceTimeout = 2000 * time.Millisecond
const DefaultDeviceRetries = 3

var ErrFirstRefreshFailed = errors.New("first refresh of projector failed")

// Updated is delivered to listeners after every refresh, whether or not it succeeded.
type Updated struct {
	Success     bool
	PowerStatus PowerStatus
}

type Option func(*Coordinator)

func WithLogger(l logwrap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.interval = d
	}
}

func WithRetries(n int) Option {
	return func(c *Coordinator) {
		c.retries = n
	}
}

func New(p Projector, uniqueID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		projector: p,
		uniqueID:  uniqueID,
		logger:    logwrap.New(discard.Discard()),
		interval:  DefaultPollInterval,
		retries:   DefaultDeviceRetries,
		timeout:   DefaultDeviceTimeout,
		deviceSem: semaphore.NewWeighted(1),
		listeners: callbacks.Create(),
		trackLock: &sync.RWMutex{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.AddOptionsToLogger(logwrap.Datum("UniqueID", uniqueID))

	return c
}

// Coordinator owns the connection to a projector, polls it and holds the latest Snapshot.
type Coordinator struct {
	// Immutable after construction.
	projector Projector
	uniqueID  string
	logger    logwrap.Logger
	interval  time.Duration
	retries   int
	timeout   time.Duration

	deviceSem *semaphore.Weighted
	listeners callbacks.AdderCaller

	trackLock *sync.RWMutex
	tracked   []string

	reading           atomic.Pointer[reading]
	lastUpdateSuccess atomic.Bool

	productInfo atomic.Pointer[capabilities.ProductInfo]

	pollerStop chan struct{}
	pollerDone chan struct{}
}

func (c *Coordinator) UniqueID() string {
	return c.uniqueID
}

// Track adds commands that are queried on every refresh while the projector is powered.
func (c *Coordinator) Track(commands ...string) {
	c.trackLock.Lock()
	defer c.trackLock.Unlock()

	for _, cmd := range commands {
		found := false

		for _, t := range c.tracked {
			if t == cmd {
				found = true
				break
			}
		}

		if !found {
			c.tracked = append(c.tracked, cmd)
		}
	}
}

func (c *Coordinator) trackedCommands() []string {
	c.trackLock.RLock()
	defer c.trackLock.RUnlock()

	return append([]string(nil), c.tracked...)
}

// AddListener registers a function of the form func(context.Context, Updated) error, it will be called after
// every refresh.
func (c *Coordinator) AddListener(f func(context.Context, Updated) error) {
	c.listeners.Add(f)
}

// reading is a snapshot and the power status it was polled under, they are always replaced together.
type reading struct {
	snapshot Snapshot
	power    PowerStatus
}

// Data returns the most recent snapshot, or nil if no poll has ever succeeded.
func (c *Coordinator) Data() Snapshot {
	_, s := c.Current()
	return s
}

// Current returns the power status and snapshot of the same poll.
func (c *Coordinator) Current() (PowerStatus, Snapshot) {
	if r := c.reading.Load(); r != nil {
		return r.power, r.snapshot
	}

	return PowerStatusUnknown, nil
}

func (c *Coordinator) LastUpdateSuccess() bool {
	return c.lastUpdateSuccess.Load()
}

func (c *Coordinator) PowerStatus() PowerStatus {
	p, _ := c.Current()
	return p
}

func (c *Coordinator) SupportsCommand(command string) bool {
	return c.projector.SupportsCommand(command)
}

func (c *Coordinator) ProductInfo() capabilities.ProductInfo {
	if pi := c.productInfo.Load(); pi != nil {
		return *pi
	}

	return capabilities.ProductInfo{}
}

// SendCommand issues a single action to the projector. Commands are not retried, a lost acknowledgement followed
// by a resend would step the setting twice.
func (c *Coordinator) SendCommand(ctx context.Context, command string, action string) (string, error) {
	if err := c.deviceSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.deviceSem.Release(1)

	c.logger.Debug(ctx, "Sending command to projector.", logwrap.Datum("Command", command), logwrap.Datum("Action", action))

	resp, err := c.projector.Send(ctx, command, action)
	if err != nil {
		c.logger.Warn(ctx, "Projector command failed.", logwrap.Err(err), logwrap.Datum("Command", command), logwrap.Datum("Action", action))
	}

	return resp, err
}

// FirstRefresh connects to the projector and performs the initial poll, it must succeed before any entity is
// registered against the coordinator.
func (c *Coordinator) FirstRefresh(pctx context.Context) error {
	ctx, end := c.logger.Segment(pctx, "Performing first refresh of projector.")
	defer end()

	if err := retry.Retry(ctx, c.timeout, c.retries, func(ctx context.Context) error {
		return c.projector.Connect(ctx)
	}); err != nil {
		c.logger.Error(ctx, "Failed to connect to projector.", logwrap.Err(err))
		return fmt.Errorf("%w: connect: %w", ErrFirstRefreshFailed, err)
	}

	if err := retry.Retry(ctx, c.timeout, c.retries, func(ctx context.Context) error {
		pi, err := c.projector.ProductInfo(ctx)
		if err == nil {
			c.productInfo.Store(&pi)
		}
		return err
	}); err != nil {
		c.logger.Warn(ctx, "Failed to read projector product information.", logwrap.Err(err))
	}

	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFirstRefreshFailed, err)
	}

	return nil
}

// RequestRefresh is used by entities to ask for an out of band poll, usually after a command has been issued.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh polls the projector, publishes a new snapshot and notifies listeners. On failure the previous snapshot
// is retained and LastUpdateSuccess becomes false.
func (c *Coordinator) Refresh(ctx context.Context) error {
	snapshot, power, err := c.poll(ctx)

	if err != nil {
		c.logger.Warn(ctx, "Failed to refresh projector.", logwrap.Err(err))
		c.lastUpdateSuccess.Store(false)
	} else {
		c.reading.Store(&reading{snapshot: snapshot, power: power})
		c.lastUpdateSuccess.Store(true)
	}

	if cerr := c.listeners.Call(ctx, Updated{Success: err == nil, PowerStatus: c.PowerStatus()}); cerr != nil {
		c.logger.Warn(ctx, "Listener failed to handle refresh.", logwrap.Err(cerr))
	}

	return err
}

func (c *Coordinator) poll(ctx context.Context) (Snapshot, PowerStatus, error) {
	if err := c.deviceSem.Acquire(ctx, 1); err != nil {
		return nil, PowerStatusUnknown, err
	}
	defer c.deviceSem.Release(1)

	var power PowerStatus

	if err := retry.Retry(ctx, c.timeout, c.retries, func(ctx context.Context) error {
		p, err := c.projector.PowerStatus(ctx)
		power = p
		return err
	}); err != nil {
		return nil, PowerStatusUnknown, fmt.Errorf("read power status: %w", err)
	}

	snapshot := Snapshot{}

	if !power.Powered() {
		return snapshot, power, nil
	}

	for _, cmd := range c.trackedCommands() {
		qctx, cancel := context.WithTimeout(ctx, c.timeout)
		v, err := c.projector.Query(qctx, cmd)
		cancel()

		if err != nil {
			c.logger.Debug(ctx, "Projector did not answer query.", logwrap.Err(err), logwrap.Datum("Command", cmd))
			continue
		}

		snapshot[cmd] = v
	}

	return snapshot, power, nil
}
