package overlay

// Delta is a snapshot of the changes held by an overlay.
type Delta struct {
	Changes map[string]interface{} `json:"changes,omitempty" msgpack:"changes,omitempty"`
	Deletes []string               `json:"deletes,omitempty" msgpack:"deletes,omitempty"`
}

// Empty returns whether the delta holds no changes.
func (d Delta) Empty() bool {
	return len(d.Changes) == 0 && len(d.Deletes) == 0
}
