package simulator

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/pda/coordinator"
	"strconv"
	"sync"
)

// Block is the reply of a projector to an action it refuses, either at a limit or while not on.
const Block = "block"

var ErrNotConnected = errors.New("projector not connected")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrUnknownAction = errors.New("unknown action")

type Setting struct {
	Value int
	Min   int
	Max   int
}

// DefaultSettings returns the settings of a typical home cinema projector.
func DefaultSettings() map[string]Setting {
	return map[string]Setting{
		"con":    {Value: 50, Min: 0, Max: 100},
		"bri":    {Value: 50, Min: 0, Max: 100},
		"color":  {Value: 10, Min: 0, Max: 20},
		"sharp":  {Value: 10, Min: 0, Max: 20},
		"micvol": {Value: 10, Min: 0, Max: 20},
		"keyst":  {Value: 10, Min: 0, Max: 20},
	}
}

type Option func(*Projector)

func WithPower(p coordinator.PowerStatus) Option {
	return func(s *Projector) {
		s.power = p
	}
}

// WithSettings replaces the settings the projector supports.
func WithSettings(settings map[string]Setting) Option {
	return func(s *Projector) {
		s.settings = map[string]*Setting{}

		for k, v := range settings {
			setting := v
			s.settings[k] = &setting
		}
	}
}

func WithProductInfo(pi capabilities.ProductInfo) Option {
	return func(s *Projector) {
		s.productInfo = pi
	}
}

// New creates an in memory projector, it starts powered on with DefaultSettings.
func New(model string, opts ...Option) *Projector {
	s := &Projector{
		lock:        &sync.Mutex{},
		power:       coordinator.PowerStatusOn,
		productInfo: capabilities.ProductInfo{Manufacturer: "BenQ", Name: model, Serial: "SIM00001", Version: "1.0"},
	}

	WithSettings(DefaultSettings())(s)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Projector struct {
	lock        *sync.Mutex
	connected   bool
	power       coordinator.PowerStatus
	productInfo capabilities.ProductInfo
	settings    map[string]*Setting
}

var _ coordinator.Projector = (*Projector)(nil)

func (s *Projector) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.connected = true
	return nil
}

func (s *Projector) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.connected = false
	return nil
}

func (s *Projector) ProductInfo(_ context.Context) (capabilities.ProductInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.connected {
		return capabilities.ProductInfo{}, ErrNotConnected
	}

	return s.productInfo, nil
}

func (s *Projector) SupportsCommand(command string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, found := s.settings[command]
	return found
}

func (s *Projector) PowerStatus(_ context.Context) (coordinator.PowerStatus, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.connected {
		return coordinator.PowerStatusUnknown, ErrNotConnected
	}

	return s.power, nil
}

// SetPower changes the power status, as if the projector had been operated by its remote.
func (s *Projector) SetPower(p coordinator.PowerStatus) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.power = p
}

// SetValue changes a setting directly, as if it had been adjusted on the projector itself. The value is clamped
// to the settings limits.
func (s *Projector) SetValue(command string, value int) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	setting, found := s.settings[command]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnsupportedCommand, command)
	}

	setting.Value = min(max(value, setting.Min), setting.Max)
	return nil
}

// Value returns the current value of a setting, regardless of power.
func (s *Projector) Value(command string) (int, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if setting, found := s.settings[command]; found {
		return setting.Value, true
	}

	return 0, false
}

func (s *Projector) Query(_ context.Context, command string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	setting, found := s.settings[command]
	if !found {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCommand, command)
	}

	return strconv.Itoa(setting.Value), nil
}

// Send applies a single step, the action is echoed if it was applied.
func (s *Projector) Send(_ context.Context, command string, action string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.connected {
		return "", ErrNotConnected
	}

	setting, found := s.settings[command]
	if !found {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCommand, command)
	}

	if s.power != coordinator.PowerStatusOn {
		return Block, nil
	}

	switch action {
	case coordinator.ActionIncrement:
		if setting.Value >= setting.Max {
			return Block, nil
		}
		setting.Value++
	case coordinator.ActionDecrement:
		if setting.Value <= setting.Min {
			return Block, nil
		}
		setting.Value--
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	return action, nil
}
