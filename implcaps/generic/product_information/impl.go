package product_information

import (
	"context"
	"errors"
	"fmt"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/persistence"
	"sync"
)

const (
	NameKey         = "Name"
	ManufacturerKey = "Manufacturer"
	VersionKey      = "Version"
	SerialKey       = "Serial"
)

var ErrNoProductInformation = errors.New("no product information available")

// Settings converts product information reported by a projector into the map consumed by Enumerate.
func Settings(pi capabilities.ProductInfo) map[string]any {
	return map[string]any{
		NameKey:         pi.Name,
		ManufacturerKey: pi.Manufacturer,
		VersionKey:      pi.Version,
		SerialKey:       pi.Serial,
	}
}

type Implementation struct {
	s  persistence.Section
	m  *sync.RWMutex
	pi *capabilities.ProductInfo
}

func NewProductInformation() *Implementation {
	return &Implementation{m: &sync.RWMutex{}}
}

func (g *Implementation) ImplName() string {
	return "GenericProductInformation"
}

func (g *Implementation) Init(_ da.Device, section persistence.Section) {
	g.s = section
}

func (g *Implementation) Load(_ context.Context) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()

	pi := capabilities.ProductInfo{}
	pi.Name, _ = g.s.String(NameKey)
	pi.Manufacturer, _ = g.s.String(ManufacturerKey)
	pi.Version, _ = g.s.String(VersionKey)
	pi.Serial, _ = g.s.String(SerialKey)

	if pi == (capabilities.ProductInfo{}) {
		return false, nil
	}

	g.pi = &pi
	return true, nil
}

func (g *Implementation) Capability() da.Capability {
	return capabilities.ProductInformationFlag
}

func (g *Implementation) Name() string {
	return capabilities.StandardNames[capabilities.ProductInformationFlag]
}

// Enumerate attaches if any of the known fields are provided as non empty strings. A projector that reports nothing
// is left without product information.
func (g *Implementation) Enumerate(_ context.Context, m map[string]any) (bool, error) {
	g.m.Lock()
	defer g.m.Unlock()

	fields := map[string]*string{}
	newPI := &capabilities.ProductInfo{}

	fields[NameKey] = &newPI.Name
	fields[ManufacturerKey] = &newPI.Manufacturer
	fields[VersionKey] = &newPI.Version
	fields[SerialKey] = &newPI.Serial

	attach := false

	for k, v := range m {
		field, known := fields[k]
		if !known {
			continue
		}

		stringV, ok := v.(string)
		if !ok {
			return g.pi != nil, fmt.Errorf("failed to cast '%s' value to string", k)
		}

		if len(stringV) > 0 {
			*field = stringV
			attach = true
		}
	}

	if attach {
		for k, field := range fields {
			g.s.Set(k, *field)
		}

		g.pi = newPI
	}

	return attach, nil
}

func (g *Implementation) Detach(_ context.Context, dt implcaps.DetachType) error {
	if dt == implcaps.NoLongerEnumerated {
		g.m.Lock()
		defer g.m.Unlock()

		for _, k := range []string{NameKey, ManufacturerKey, VersionKey, SerialKey} {
			g.s.Delete(k)
		}

		g.pi = nil
	}

	return nil
}

func (g *Implementation) Get(_ context.Context) (capabilities.ProductInfo, error) {
	g.m.RLock()
	defer g.m.RUnlock()

	if g.pi == nil {
		return capabilities.ProductInfo{}, ErrNoProductInformation
	}

	return *g.pi, nil
}

var _ capabilities.ProductInformation = (*Implementation)(nil)
var _ implcaps.PDACapability = (*Implementation)(nil)
var _ da.BasicCapability = (*Implementation)(nil)
