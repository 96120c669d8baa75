package product_information

import (
	"context"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/pda/implcaps"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestProductInformation(t *testing.T) {
	t.Run("has basic capability functions", func(t *testing.T) {
		pi := Implementation{}

		assert.Equal(t, capabilities.ProductInformationFlag, pi.Capability())
		assert.Equal(t, capabilities.StandardNames[capabilities.ProductInformationFlag], pi.Name())
		assert.Equal(t, "GenericProductInformation", pi.ImplName())
	})

	t.Run("accepts projector product information and returns via Get", func(t *testing.T) {
		pi := NewProductInformation()
		pi.Init(nil, memory.New())

		expectedInfo := capabilities.ProductInfo{
			Manufacturer: "BenQ",
			Name:         "W1070",
			Serial:       "PDX1234",
		}

		attached, err := pi.Enumerate(context.Background(), Settings(expectedInfo))
		assert.True(t, attached)
		assert.NoError(t, err)

		actualInfo, err := pi.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, expectedInfo, actualInfo)
	})

	t.Run("ignores unknown keys", func(t *testing.T) {
		pi := NewProductInformation()
		pi.Init(nil, memory.New())

		attached, err := pi.Enumerate(context.Background(), map[string]any{
			"Name":  "W1070",
			"Lamps": 1,
		})
		assert.True(t, attached)
		assert.NoError(t, err)
	})

	t.Run("keeps previous information if a new enumeration fails", func(t *testing.T) {
		pi := NewProductInformation()
		pi.Init(nil, memory.New())

		attached, err := pi.Enumerate(context.Background(), map[string]any{"Name": "W1070"})
		assert.True(t, attached)
		assert.NoError(t, err)

		attached, err = pi.Enumerate(context.Background(), map[string]any{"Name": 7})
		assert.True(t, attached)
		assert.Error(t, err)

		actualInfo, _ := pi.Get(context.Background())
		assert.Equal(t, "W1070", actualInfo.Name)
	})

	t.Run("fails to attach if data is not string", func(t *testing.T) {
		pi := NewProductInformation()
		pi.Init(nil, memory.New())

		attached, err := pi.Enumerate(context.Background(), map[string]any{"Name": 7})
		assert.False(t, attached)
		assert.Error(t, err)
	})

	t.Run("fails to attach if the projector reported nothing", func(t *testing.T) {
		pi := NewProductInformation()
		pi.Init(nil, memory.New())

		attached, err := pi.Enumerate(context.Background(), Settings(capabilities.ProductInfo{}))
		assert.False(t, attached)
		assert.NoError(t, err)

		_, err = pi.Get(context.Background())
		assert.ErrorIs(t, err, ErrNoProductInformation)
	})

	t.Run("capturing state and reloading should result in same output state", func(t *testing.T) {
		s := memory.New()
		pi1 := NewProductInformation()
		pi1.Init(nil, s)

		attached, err := pi1.Enumerate(context.Background(), Settings(capabilities.ProductInfo{
			Name:         "W1070",
			Manufacturer: "BenQ",
			Serial:       "PDX1234",
			Version:      "1.0.0",
		}))
		assert.True(t, attached)
		assert.NoError(t, err)

		pi2 := NewProductInformation()
		pi2.Init(nil, s)

		attached, err = pi2.Load(context.Background())
		assert.True(t, attached)
		assert.NoError(t, err)

		out1, _ := pi1.Get(context.Background())
		out2, _ := pi2.Get(context.Background())

		assert.Equal(t, out1, out2)
	})

	t.Run("detaching when no longer enumerated removes the stored data", func(t *testing.T) {
		s := memory.New()
		pi := NewProductInformation()
		pi.Init(nil, s)

		_, _ = pi.Enumerate(context.Background(), map[string]any{"Name": "W1070"})
		assert.NoError(t, pi.Detach(context.Background(), implcaps.NoLongerEnumerated))

		_, err := pi.Get(context.Background())
		assert.ErrorIs(t, err, ErrNoProductInformation)

		reloaded := NewProductInformation()
		reloaded.Init(nil, s)

		loaded, err := reloaded.Load(context.Background())
		assert.False(t, loaded)
		assert.NoError(t, err)
	})
}
