package session

import (
	"errors"
	"fmt"
)

//ErrInvalidTransition is returned by Enter when the requested state is not reachable from the current one
var ErrInvalidTransition = errors.New("invalid state transition")

//Observer is notified after every successful transition
type Observer func(newState, previousState State)

//Machine is the authoritative record of the session phase. It holds no business logic beyond the transition table.
//A Machine is not safe for concurrent use, its owner serializes calls.
type Machine struct {
	current   State
	previous  State
	entered   bool
	observers []Observer
}

func NewMachine() *Machine {
	return &Machine{}
}

//Observe registers fn to be called synchronously on each transition
func (m *Machine) Observe(fn Observer) {
	m.observers = append(m.observers, fn)
}

//Current returns the current state. ok is false until a state has been entered.
func (m *Machine) Current() (state State, ok bool) {
	return m.current, m.entered
}

//Previous returns the state held before the last transition
func (m *Machine) Previous() State {
	return m.previous
}

//Is reports whether the machine currently is in state s
func (m *Machine) Is(s State) bool {
	return m.entered && m.current == s
}

//Enter moves the machine to s. The machine is left untouched when the transition is not in the table.
//Before any state has been entered only Inactive is accepted.
func (m *Machine) Enter(s State) error {
	if !m.entered {
		if s != Inactive {
			return fmt.Errorf("%w: <none> -> %v", ErrInvalidTransition, s)
		}
	} else if !CanTransition(m.current, s) {
		return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, m.current, s)
	}

	prev := m.current
	if !m.entered {
		prev = Inactive
	}
	m.previous, m.current, m.entered = prev, s, true

	for _, fn := range m.observers {
		fn(s, prev)
	}
	return nil
}

//Reset forces the machine into Inactive. It's a no-op when the machine already is Inactive.
func (m *Machine) Reset() {
	if m.Is(Inactive) {
		return
	}
	_ = m.Enter(Inactive) //always allowed from any other state
}
