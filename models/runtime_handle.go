package models

import "fmt"

type UnitState string

const (
	UnitStatePulling  UnitState = "PULLING"
	UnitStateCreating UnitState = "CREATING"
	UnitStateStarting UnitState = "STARTING"
	UnitStateRunning  UnitState = "RUNNING"
	UnitStateFailed   UnitState = "FAILED"
)

var unitStateRank = map[UnitState]int{
	UnitStatePulling:  1,
	UnitStateCreating: 2,
	UnitStateStarting: 3,
	UnitStateRunning:  4,
	UnitStateFailed:   4,
}

// Terminal reports whether no further transition is possible.
func (s UnitState) Terminal() bool {
	return s == UnitStateRunning || s == UnitStateFailed
}

// RuntimeHandle is the live identity of a unit as returned by a reconcile.
type RuntimeHandle struct {
	ContainerID string    `json:"container_id,omitempty"`
	UnitID      string    `json:"unit_id,omitempty"`
	UnitName    string    `json:"unit_name"`
	Hostname    string    `json:"hostname"`
	Network     string    `json:"network,omitempty"`
	State       UnitState `json:"state"`

	// Set when the unit ran to completion instead of staying up
	Exited bool `json:"exited,omitempty"`
}

// Transition moves the handle forward. Moving backwards, staying put or
// leaving a terminal state is an error.
func (h *RuntimeHandle) Transition(to UnitState) error {
	next, ok := unitStateRank[to]
	if !ok {
		return fmt.Errorf("unknown unit state %q", to)
	}
	if h.State.Terminal() {
		return fmt.Errorf("unit %s is %s and cannot move to %s", h.UnitName, h.State, to)
	}
	if cur := unitStateRank[h.State]; next <= cur {
		return fmt.Errorf("unit %s cannot move from %s back to %s", h.UnitName, h.State, to)
	}
	h.State = to
	return nil
}
