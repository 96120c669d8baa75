package implcaps

import (
	"context"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/pda/coordinator"
	"github.com/shimmeringbee/persistence"
)

const (
	ImplementationKey = "Implementation"
	LastUpdatedKey    = "LastUpdated"
	LastChangedKey    = "LastChanged"
)

type DetachType int

const (
	// DeviceRemoved is used when the projector has been removed from the gateway, no communication should be
	// assumed to be possible.
	DeviceRemoved DetachType = iota
	// NoLongerEnumerated is used when the projector no longer supports the capability, or a rule has removed it.
	// Persisted state should be tidied.
	NoLongerEnumerated
	// FailedAttach is used when an Enumerate failed.
	FailedAttach
)

type PDACapability interface {
	// BasicCapability functions should also be present.
	da.BasicCapability
	// Init is used upon creation of the capability to provide persistence.
	Init(da.Device, persistence.Section)
	// Load is used upon load of the capability from persistence at start up.
	Load(context.Context) (bool, error)
	// Enumerate is used to enumerate or re-enumerate a device, the map contains settings produced by rules.
	// Enumerate should return true if the capability should be attached.
	Enumerate(context.Context, map[string]any) (bool, error)
	// Detach is called when a capability is removed from a device.
	Detach(context.Context, DetachType) error
	// ImplName returns the implementation name of the capability.
	ImplName() string
}

// SnapshotCapability is implemented by capabilities which consume polled data from the coordinator.
type SnapshotCapability interface {
	// InitializeFromSnapshot is called once, after the first refresh of the coordinator has succeeded.
	InitializeFromSnapshot(context.Context)
	// HandleSnapshotUpdate is called after every refresh of the coordinator.
	HandleSnapshotUpdate(context.Context)
}

// Coordinator is the subset of the polling coordinator capabilities depend upon.
type Coordinator interface {
	UniqueID() string
	Data() coordinator.Snapshot
	LastUpdateSuccess() bool
	PowerStatus() coordinator.PowerStatus
	// Current returns the power status and snapshot from the same poll.
	Current() (coordinator.PowerStatus, coordinator.Snapshot)
	ProductInfo() capabilities.ProductInfo
	SendCommand(ctx context.Context, command string, action string) (string, error)
	RequestRefresh(ctx context.Context) error
}

type PDAInterface interface {
	// Logger returns the gateway logger.
	Logger() logwrap.Logger
	// Coordinator returns the coordinator of the projector the capability is attached to.
	Coordinator() Coordinator
	// SendEvent allows a capability to publish event messages.
	SendEvent(any)
}

var _ Coordinator = (*coordinator.Coordinator)(nil)
