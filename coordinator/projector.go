package coordinator

import (
	"context"
	"github.com/shimmeringbee/da/capabilities"
)

const (
	ActionIncrement = "+"
	ActionDecrement = "-"
)

// Projector is the device library boundary, an implementation owns the serial connection and protocol.
type Projector interface {
	Connect(context.Context) error
	Close() error
	ProductInfo(context.Context) (capabilities.ProductInfo, error)
	SupportsCommand(command string) bool
	PowerStatus(context.Context) (PowerStatus, error)
	// Query reads the current value of a setting.
	Query(ctx context.Context, command string) (string, error)
	// Send issues an action against a command, returning the projector's reply. For relative settings a reply
	// equal to the action is an acknowledgement.
	Send(ctx context.Context, command string, action string) (string, error)
}
