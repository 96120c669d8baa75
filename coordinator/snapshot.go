package coordinator

// Snapshot is the full set of readings from a single poll, keyed by command. Values are normally the raw strings
// returned by the projector. A Snapshot is never modified once published, a refresh replaces it.
type Snapshot map[string]any

func (s Snapshot) Get(command string) (any, bool) {
	if s == nil {
		return nil, false
	}

	v, ok := s[command]
	return v, ok
}
