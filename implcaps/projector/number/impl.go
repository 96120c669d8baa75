package number

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/attribute"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/persistence/converter"
	"math"
	"time"
)

var _ da.BasicCapability = (*Implementation)(nil)
var _ capabilities.WithLastChangeTime = (*Implementation)(nil)
var _ capabilities.WithLastUpdateTime = (*Implementation)(nil)
var _ implcaps.PDACapability = (*Implementation)(nil)
var _ implcaps.SnapshotCapability = (*Implementation)(nil)

const (
	ValueKey     = "Value"
	AvailableKey = "Available"
	CommandKey   = "Command"
	NameKey      = "DisplayName"
	IconKey      = "Icon"
	MaxValueKey  = "MaxValue"
)

// PublishedAvailableKey holds the availability last propagated, including the coordinators health.
const PublishedAvailableKey = "PublishedAvailable"

// tolerance absorbs float error when comparing the cached value against a target.
const tolerance = 1e-9

var ErrOutOfRange = errors.New("value out of range")

// State is the externally observable state of a number, Available is the composition of the locally parsed
// availability and the coordinators connection health.
type State struct {
	Value     float64
	HasValue  bool
	Available bool
}

// Update is sent as an event whenever the state of a number is propagated.
type Update struct {
	Device   da.Device
	UniqueID string
	Command  string
	State    State
}

func NewNumber(zi implcaps.PDAInterface, d Descriptor) *Implementation {
	return &Implementation{zi: zi, c: zi.Coordinator(), l: zi.Logger(), descriptor: d}
}

type Implementation struct {
	s  persistence.Section
	d  da.Device
	zi implcaps.PDAInterface
	c  implcaps.Coordinator
	l  logwrap.Logger

	descriptor Descriptor
}

func (i *Implementation) Capability() da.Capability {
	return capabilities.LevelFlag
}

func (i *Implementation) Name() string {
	return capabilities.StandardNames[capabilities.LevelFlag]
}

func (i *Implementation) ImplName() string {
	return "ProjectorNumber"
}

func (i *Implementation) Init(d da.Device, s persistence.Section) {
	i.d = d
	i.s = s

	if len(i.descriptor.Command) > 0 {
		i.storeDescriptor()
	}
}

func (i *Implementation) storeDescriptor() {
	i.s.Set(CommandKey, i.descriptor.Command)
	i.s.Set(NameKey, i.descriptor.Name)
	i.s.Set(IconKey, i.descriptor.Icon)
	i.s.Set(MaxValueKey, i.descriptor.MaxValue)
}

func (i *Implementation) Load(_ context.Context) (bool, error) {
	cmd, ok := i.s.String(CommandKey)
	if !ok {
		return false, fmt.Errorf("number missing config parameter: %s", CommandKey)
	}

	maxValue, ok := i.s.Int(MaxValueKey)
	if !ok {
		return false, fmt.Errorf("number missing config parameter: %s", MaxValueKey)
	}

	i.descriptor.Command = cmd
	i.descriptor.MaxValue = int(maxValue)
	i.descriptor.Name, _ = i.s.String(NameKey)
	i.descriptor.Icon, _ = i.s.String(IconKey)

	return true, nil
}

// Enumerate applies rule provided overrides of the descriptor, "Name", "Icon" and "MaxValue" are recognised.
func (i *Implementation) Enumerate(_ context.Context, m map[string]any) (bool, error) {
	d := i.descriptor
	d.Name = implcaps.Get(m, "Name", d.Name)
	d.Icon = implcaps.Get(m, "Icon", d.Icon)
	d.MaxValue = implcaps.GetInt(m, "MaxValue", d.MaxValue)

	if len(d.Command) == 0 {
		return false, fmt.Errorf("number has no command")
	}

	if float64(d.MaxValue) < MinValue {
		return false, fmt.Errorf("number %s has maximum %d below minimum", d.Command, d.MaxValue)
	}

	i.descriptor = d
	i.storeDescriptor()

	return true, nil
}

func (i *Implementation) Detach(_ context.Context, detachType implcaps.DetachType) error {
	if detachType == implcaps.NoLongerEnumerated {
		i.s.Delete(ValueKey)
		i.s.Delete(PublishedAvailableKey)
		i.s.Delete(implcaps.LastUpdatedKey)
		i.s.Delete(implcaps.LastChangedKey)
	}

	i.s.Set(AvailableKey, false)

	return nil
}

func (i *Implementation) Descriptor() Descriptor {
	return i.descriptor
}

func (i *Implementation) Command() string {
	return i.descriptor.Command
}

func (i *Implementation) UniqueID() string {
	return fmt.Sprintf("%s-%s", i.c.UniqueID(), i.descriptor.Command)
}

func (i *Implementation) MinValue() float64 {
	return MinValue
}

func (i *Implementation) MaxValue() float64 {
	return float64(i.descriptor.MaxValue)
}

func (i *Implementation) Step() float64 {
	return Step
}

// Value returns the cached value, the second return is false if no value has been successfully parsed.
func (i *Implementation) Value() (float64, bool) {
	st := i.state()
	return st.Value, st.HasValue
}

// Available is true only if the last value parsed successfully and the coordinators last update succeeded.
func (i *Implementation) Available() bool {
	if !i.state().Available {
		return false
	}

	return i.c.LastUpdateSuccess()
}

func (i *Implementation) Status() State {
	st := i.state()
	return State{Value: st.Value, HasValue: st.HasValue, Available: i.Available()}
}

func (i *Implementation) LastUpdateTime(_ context.Context) (time.Time, error) {
	t, _ := converter.Retrieve(i.s, implcaps.LastUpdatedKey, converter.TimeDecoder)
	return t, nil
}

func (i *Implementation) LastChangeTime(_ context.Context) (time.Time, error) {
	t, _ := converter.Retrieve(i.s, implcaps.LastChangedKey, converter.TimeDecoder)
	return t, nil
}

// InitializeFromSnapshot reads the first polled value, it never fails, unparsable values leave the number
// unavailable.
func (i *Implementation) InitializeFromSnapshot(ctx context.Context) {
	o := attribute.Read(i.c.Data(), i.descriptor.Command)

	switch o.Kind {
	case attribute.Parsed:
		i.setState(attribute.State{Value: o.Value, HasValue: true, Available: true})
		i.touch()
		i.writeState()
	case attribute.ParseFailed, attribute.TypeFailed:
		i.setState(attribute.State{})
		i.logParseFailure(ctx, o)
	default:
		i.setState(attribute.State{})
		i.l.Debug(ctx, "Projector value is not available.", logwrap.Datum("Command", i.descriptor.Command))
	}
}

// HandleSnapshotUpdate is called on every refresh of the coordinator, state is only propagated if something
// observable changed. That includes the coordinator failing or recovering, which changes availability without
// changing the snapshot.
func (i *Implementation) HandleSnapshotUpdate(ctx context.Context) {
	power, data := i.c.Current()
	current := i.state()
	o := attribute.Observe(power, data, i.descriptor.Command)
	next, dirty := attribute.Transition(current, o)

	switch o.Kind {
	case attribute.PowerOff:
		if current.Available {
			i.l.Debug(ctx, "Projector value is not available.", logwrap.Datum("Command", i.descriptor.Command), logwrap.Datum("PowerStatus", power.String()))
		}
	case attribute.ParseFailed, attribute.TypeFailed:
		i.logParseFailure(ctx, o)
	case attribute.Parsed:
		converter.Store(i.s, implcaps.LastUpdatedKey, time.Now(), converter.TimeEncoder)
	}

	if dirty {
		i.setState(next)

		if next.Value != current.Value || next.HasValue != current.HasValue {
			converter.Store(i.s, implcaps.LastChangedKey, time.Now(), converter.TimeEncoder)
		}
	}

	if dirty || i.Available() != i.publishedAvailable() {
		i.writeState()
	}
}

// SetValue moves the setting towards target one step at a time, the projector only offers relative adjustment.
// Stepping stops early on the first step the projector does not acknowledge, usually a hardware limit. The result
// is reconciled by requesting a refresh from the coordinator.
func (i *Implementation) SetValue(pctx context.Context, target float64) error {
	ctx, end := i.l.Segment(pctx, "Setting projector value.", logwrap.Datum("Command", i.descriptor.Command), logwrap.Datum("Target", target))
	defer end()

	st := i.state()

	if power := i.c.PowerStatus(); power != coordinator.PowerStatusOn {
		i.l.Debug(ctx, "Projector is not on, value can not be set.", logwrap.Datum("PowerStatus", power.String()))
		st.Available = false
		i.setState(st)
		i.writeState()
		return nil
	}

	if target < MinValue-tolerance || target > i.MaxValue()+tolerance {
		return fmt.Errorf("%w: %s: %v not in [%v, %v]", ErrOutOfRange, i.descriptor.Command, target, MinValue, i.MaxValue())
	}

	if !st.HasValue {
		i.l.Warn(ctx, "Current value is unknown, unable to step towards target.")
		i.requestRefresh(ctx)
		return nil
	}

	if math.Abs(st.Value-target) <= tolerance {
		return nil
	}

	maxSteps := int(math.Ceil(math.Abs(target-st.Value)/Step - tolerance))
	steps := 0

	for ; steps < maxSteps && st.Value+Step <= target+tolerance; steps++ {
		if !i.step(ctx, coordinator.ActionIncrement) {
			break
		}

		st.Value += Step
		i.setState(st)
	}

	for ; steps < maxSteps && st.Value-Step >= target-tolerance; steps++ {
		if !i.step(ctx, coordinator.ActionDecrement) {
			break
		}

		st.Value -= Step
		i.setState(st)
	}

	if steps > 0 {
		converter.Store(i.s, implcaps.LastChangedKey, time.Now(), converter.TimeEncoder)
	}

	i.l.Debug(ctx, "Stepping complete.", logwrap.Datum("Steps", steps), logwrap.Datum("Value", st.Value))

	i.writeState()
	i.requestRefresh(ctx)
	i.writeState()

	return nil
}

func (i *Implementation) step(ctx context.Context, action string) bool {
	resp, err := i.c.SendCommand(ctx, i.descriptor.Command, action)
	if err != nil {
		i.l.Warn(ctx, "Projector step failed.", logwrap.Err(err), logwrap.Datum("Action", action))
		return false
	}

	if resp != action {
		i.l.Info(ctx, "Projector did not acknowledge step.", logwrap.Datum("Action", action), logwrap.Datum("Response", resp))
		return false
	}

	return true
}

func (i *Implementation) requestRefresh(ctx context.Context) {
	if err := i.c.RequestRefresh(ctx); err != nil {
		i.l.Warn(ctx, "Requested refresh failed.", logwrap.Err(err))
	}
}

func (i *Implementation) logParseFailure(ctx context.Context, o attribute.Observation) {
	i.l.Error(ctx, "Failed to parse projector value.", logwrap.Err(o.Err), logwrap.Datum("Command", i.descriptor.Command), logwrap.Datum("Raw", fmt.Sprintf("%v", o.Raw)), logwrap.Datum("Failure", o.Kind.String()))
}

func (i *Implementation) state() attribute.State {
	v, hasValue := i.s.Float(ValueKey)
	a, _ := i.s.Bool(AvailableKey)

	return attribute.State{Value: v, HasValue: hasValue, Available: a}
}

func (i *Implementation) setState(st attribute.State) {
	if st.HasValue {
		i.s.Set(ValueKey, st.Value)
	} else {
		i.s.Delete(ValueKey)
	}

	i.s.Set(AvailableKey, st.Available)
}

func (i *Implementation) touch() {
	now := time.Now()
	converter.Store(i.s, implcaps.LastUpdatedKey, now, converter.TimeEncoder)
	converter.Store(i.s, implcaps.LastChangedKey, now, converter.TimeEncoder)
}

// publishedAvailable is the composed availability last sent to the host.
func (i *Implementation) publishedAvailable() bool {
	a, _ := i.s.Bool(PublishedAvailableKey)
	return a
}

func (i *Implementation) writeState() {
	st := i.Status()
	i.s.Set(PublishedAvailableKey, st.Available)

	i.zi.SendEvent(Update{
		Device:   i.d,
		UniqueID: i.UniqueID(),
		Command:  i.descriptor.Command,
		State:    st,
	})
}
