package attribute

// State is the locally held view of a polled setting.
type State struct {
	Value     float64
	HasValue  bool
	Available bool
}

type transition struct {
	available   bool
	updateValue bool
}

var transitions = map[Kind]transition{
	PowerOff:    {available: false},
	NoData:      {available: false},
	Parsed:      {available: true, updateValue: true},
	ParseFailed: {available: false},
	TypeFailed:  {available: false},
}

// Transition applies an observation to a state, returning the new state and whether anything observable changed.
func Transition(s State, o Observation) (State, bool) {
	t, ok := transitions[o.Kind]
	if !ok {
		return s, false
	}

	next := s
	next.Available = t.available

	if t.updateValue {
		next.Value = o.Value
		next.HasValue = true
	}

	return next, next != s
}
