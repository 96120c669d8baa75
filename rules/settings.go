package rules

type Settings map[string]any

// Merge returns a new Settings containing s overlaid by o, neither input is modified.
func (s Settings) Merge(o Settings) Settings {
	n := make(Settings, len(s)+len(o))

	for k, v := range s {
		n[k] = v
	}

	for k, v := range o {
		n[k] = v
	}

	return n
}
