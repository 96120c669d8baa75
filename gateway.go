package pda

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/pda/implcaps/factory"
	"github.com/shimmeringbee/pda/implcaps/generic/product_information"
	"github.com/shimmeringbee/pda/implcaps/projector/number"
	"github.com/shimmeringbee/pda/rules"
	"github.com/shimmeringbee/persistence"
	"sync"
)

const EventBufferSize = 100

var ErrNotStarted = errors.New("gateway not started")
var ErrUnknownCommand = errors.New("no number for command")

// Coordinator is the polling coordinator of the projector a gateway presents.
type Coordinator interface {
	implcaps.Coordinator
	FirstRefresh(context.Context) error
	SupportsCommand(string) bool
	Track(...string)
	AddListener(func(context.Context, coordinator.Updated) error)
	Start()
	Stop()
}

var _ Coordinator = (*coordinator.Coordinator)(nil)

// Identifier is the unique id of the projector, as provided by the coordinator.
type Identifier string

func (i Identifier) String() string {
	return string(i)
}

func New(baseCtx context.Context, s persistence.Section, c Coordinator, r *rules.Engine) *Gateway {
	ctx, cancel := context.WithCancel(baseCtx)

	gw := &Gateway{
		logger:      logwrap.New(discard.Discard()),
		section:     s,
		coordinator: c,
		rules:       r,
		descriptors: number.DefaultDescriptors,

		ctx:       ctx,
		ctxCancel: cancel,

		events:   make(chan any, EventBufferSize),
		updates:  make(chan struct{}, 1),
		requests: make(chan setRequest),

		numberByCommand: map[string]*number.Implementation{},
		startedLock:     &sync.RWMutex{},
	}

	gw.pdaInterface = pdaInterface{gw: gw}

	return gw
}

type Gateway struct {
	logger      logwrap.Logger
	section     persistence.Section
	coordinator Coordinator
	rules       *rules.Engine
	descriptors []number.Descriptor

	pdaInterface implcaps.PDAInterface

	ctx       context.Context
	ctxCancel context.CancelFunc
	loopDone  chan struct{}

	events   chan any
	updates  chan struct{}
	requests chan setRequest

	self               da.BaseDevice
	productInformation *product_information.Implementation
	numbers            []*number.Implementation
	numberByCommand    map[string]*number.Implementation

	startedLock *sync.RWMutex
	started     bool
}

// WithDescriptors replaces the default set of numbers offered, it must be called before Start.
func (g *Gateway) WithDescriptors(d []number.Descriptor) {
	g.descriptors = d
}

// Start performs the first refresh of the projector, creates a number for each supported setting and begins
// processing updates. A failure of the first refresh is fatal, nothing is registered.
func (g *Gateway) Start(pctx context.Context) error {
	ctx, end := g.logger.Segment(pctx, "Starting projector gateway.", logwrap.Datum("UniqueID", g.coordinator.UniqueID()))
	defer end()

	for _, d := range g.descriptors {
		g.coordinator.Track(d.Command)
	}

	if err := g.coordinator.FirstRefresh(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	g.self = da.BaseDevice{
		DeviceIdentifier: Identifier(g.coordinator.UniqueID()),
	}

	g.attachProductInformation(ctx)

	output := g.executeRules(ctx)
	registered := g.registerNumbers(output)

	g.self.DeviceCapabilities = g.capabilitiesFor(len(registered))
	enumerated := map[string]bool{ProductInformationSection: g.productInformation != nil}

	for _, n := range registered {
		if g.attachNumber(ctx, n, output.Settings[n.Command()]) {
			enumerated[n.Command()] = true
		}
	}

	g.removeStaleCapabilities(ctx, enumerated)
	g.self.DeviceCapabilities = g.capabilitiesFor(len(g.numbers))

	g.coordinator.AddListener(g.coordinatorUpdated)

	g.loopDone = make(chan struct{})
	go g.loop()

	g.startedLock.Lock()
	g.started = true
	g.startedLock.Unlock()

	g.coordinator.Start()

	g.logger.Info(ctx, "Projector gateway started.", logwrap.Datum("Numbers", len(g.numbers)))

	return nil
}

func (g *Gateway) Stop() error {
	g.startedLock.Lock()
	wasStarted := g.started
	g.started = false
	g.startedLock.Unlock()

	if !wasStarted {
		return nil
	}

	g.coordinator.Stop()
	g.ctxCancel()
	<-g.loopDone

	for _, n := range g.numbers {
		if err := n.Detach(context.Background(), implcaps.DeviceRemoved); err != nil {
			g.logger.Warn(context.Background(), "Failed to detach number.", logwrap.Err(err), logwrap.Datum("Command", n.Command()))
		}
	}

	return nil
}

func (g *Gateway) isStarted() bool {
	g.startedLock.RLock()
	defer g.startedLock.RUnlock()
	return g.started
}

func (g *Gateway) attachProductInformation(ctx context.Context) {
	pi := product_information.NewProductInformation()
	s := g.sectionForCapability(ProductInformationSection)
	s.Set(implcaps.ImplementationKey, pi.ImplName())
	pi.Init(g.self, s.Section(DataSection))

	attached, err := pi.Enumerate(ctx, product_information.Settings(g.coordinator.ProductInfo()))
	if err != nil {
		g.logger.Warn(ctx, "Failed to enumerate product information.", logwrap.Err(err))
	}

	if attached {
		g.productInformation = pi
	}
}

func (g *Gateway) executeRules(ctx context.Context) rules.Output {
	empty := rules.Output{Remove: map[string]bool{}, Settings: map[string]rules.Settings{}}

	if g.rules == nil {
		return empty
	}

	pi := g.coordinator.ProductInfo()
	input := rules.Input{
		Product: rules.InputProductData{
			Name:         pi.Name,
			Manufacturer: pi.Manufacturer,
			Version:      pi.Version,
			Serial:       pi.Serial,
		},
	}

	for _, d := range g.descriptors {
		if g.coordinator.SupportsCommand(d.Command) {
			input.Commands = append(input.Commands, d.Command)
		}
	}

	output, err := g.rules.Execute(input)
	if err != nil {
		g.logger.Error(ctx, "Failed to execute rules, continuing with defaults.", logwrap.Err(err))
		return empty
	}

	return output
}

// registerNumbers creates numbers for the settings the projector supports, less any removed by rules.
func (g *Gateway) registerNumbers(output rules.Output) []*number.Implementation {
	supported := func(command string) bool {
		return g.coordinator.SupportsCommand(command) && !output.Remove[command]
	}

	return factory.Numbers(supported, g.descriptors, g.pdaInterface)
}

func (g *Gateway) attachNumber(pctx context.Context, n *number.Implementation, settings rules.Settings) bool {
	ctx, end := g.logger.Segment(pctx, "Attaching number.", logwrap.Datum("Command", n.Command()))
	defer end()

	s := g.sectionForCapability(n.Command())
	s.Set(implcaps.ImplementationKey, n.ImplName())
	n.Init(g.self, s.Section(DataSection))

	attached, err := n.Enumerate(ctx, settings)
	if err != nil || !attached {
		g.logger.Warn(ctx, "Rejected number attach.", logwrap.Err(err))
		_ = n.Detach(ctx, implcaps.FailedAttach)
		return false
	}

	n.InitializeFromSnapshot(ctx)

	g.numbers = append(g.numbers, n)
	g.numberByCommand[n.Command()] = n

	return true
}

func (g *Gateway) Self() da.Device {
	return g.self
}

func (g *Gateway) Devices() []da.Device {
	return []da.Device{g.self}
}

// Capabilities returns the capabilities presented by the projector device.
func (g *Gateway) Capabilities() []da.Capability {
	return g.self.DeviceCapabilities
}

func (g *Gateway) capabilitiesFor(numbers int) []da.Capability {
	var caps []da.Capability

	if g.productInformation != nil {
		caps = append(caps, capabilities.ProductInformationFlag)
	}

	if numbers > 0 {
		caps = append(caps, capabilities.LevelFlag)
	}

	return caps
}

// ProductInformation returns nil if the projector did not report any product information.
func (g *Gateway) ProductInformation() capabilities.ProductInformation {
	if g.productInformation == nil {
		return nil
	}

	return g.productInformation
}

func (g *Gateway) Numbers() []*number.Implementation {
	return append([]*number.Implementation(nil), g.numbers...)
}

func (g *Gateway) Number(command string) (*number.Implementation, bool) {
	n, ok := g.numberByCommand[command]
	return n, ok
}
