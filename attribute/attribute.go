package attribute

import (
	"errors"
	"fmt"
	"github.com/shimmeringbee/pda/coordinator"
	"math"
	"strconv"
	"strings"
)

var ErrNotNumeric = errors.New("value is not numeric")
var ErrUnexpectedType = errors.New("value has unexpected type")

// Coerce converts a raw snapshot value into a float. Strings are parsed, Go numeric types are converted, anything
// else fails with ErrUnexpectedType. Non finite results are rejected as ErrNotNumeric.
func Coerce(raw any) (float64, error) {
	var f float64

	switch v := raw.(type) {
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrNotNumeric, v, err)
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnexpectedType, raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrNotNumeric, raw)
	}

	return f, nil
}

type Kind int

const (
	// PowerOff the projector is not on or powering on, settings can not be read.
	PowerOff Kind = iota
	// NoData there is no snapshot, or the snapshot has no value for the command.
	NoData
	// Parsed the value was read and coerced.
	Parsed
	// ParseFailed the value was a string which did not parse as a number.
	ParseFailed
	// TypeFailed the value was of a type that can not be coerced.
	TypeFailed
)

var kindNames = map[Kind]string{
	PowerOff:    "PowerOff",
	NoData:      "NoData",
	Parsed:      "Parsed",
	ParseFailed: "ParseFailed",
	TypeFailed:  "TypeFailed",
}

func (k Kind) String() string {
	return kindNames[k]
}

type Observation struct {
	Kind  Kind
	Value float64
	Raw   any
	Err   error
}

// Present reports whether a raw snapshot value carries anything to parse.
func Present(raw any, found bool) bool {
	if !found || raw == nil {
		return false
	}

	if s, ok := raw.(string); ok && len(s) == 0 {
		return false
	}

	return true
}

// Observe classifies the snapshot value for a command, evaluating power before presence before parsing.
func Observe(power coordinator.PowerStatus, snapshot coordinator.Snapshot, command string) Observation {
	if !power.Powered() {
		return Observation{Kind: PowerOff}
	}

	return Read(snapshot, command)
}

// Read classifies the snapshot value for a command without regard to power status.
func Read(snapshot coordinator.Snapshot, command string) Observation {
	raw, found := snapshot.Get(command)
	if !Present(raw, found) {
		return Observation{Kind: NoData, Raw: raw}
	}

	v, err := Coerce(raw)
	switch {
	case err == nil:
		return Observation{Kind: Parsed, Value: v, Raw: raw}
	case errors.Is(err, ErrUnexpectedType):
		return Observation{Kind: TypeFailed, Raw: raw, Err: err}
	default:
		return Observation{Kind: ParseFailed, Raw: raw, Err: err}
	}
}
