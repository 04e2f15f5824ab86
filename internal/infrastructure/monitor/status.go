package monitor

import "time"

// Status is the last observed health of every registered component.
type Status struct {
	Components map[string]bool `json:"components"`
	LastCheck  time.Time       `json:"last_check"`
}

// Healthy reports whether every component answered its last check.
func (s Status) Healthy() bool {
	if len(s.Components) == 0 {
		return false
	}
	for _, ok := range s.Components {
		if !ok {
			return false
		}
	}
	return true
}
