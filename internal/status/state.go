package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/imsm/internal/bus"
)

// State is a connection status.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
)

// Reason explains why the status last changed.
type Reason string

const (
	ReasonNone           Reason = "none"
	ReasonRequested      Reason = "requested"
	ReasonNetworkError   Reason = "network_error"
	ReasonAuthFailed     Reason = "authentication_failed"
	ReasonEncryptionErr  Reason = "encryption_error"
	ReasonNameInUse      Reason = "name_in_use"
	ReasonLoggedOut      Reason = "logged_out"
	ReasonBackendFailure Reason = "backend_failure"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Disconnected},
	Connected:    {Disconnected},
}

// Machine tracks and enforces connection status transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  Reason
	bus     *bus.Bus
}

// NewMachine creates a machine in the Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		reason:  ReasonNone,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the reason attached to the last transition.
func (m *Machine) Reason() Reason {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State, reason Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if m.bus != nil {
		m.bus.Emit(EventStatusChanged, StatusChange{
			From:   from,
			To:     to,
			Reason: reason,
		})
	}
	return nil
}

// EventStatusChanged is the bus kind published on every transition.
const EventStatusChanged = "connection.status_changed"

// StatusChange is the payload for status change events.
type StatusChange struct {
	From   State
	To     State
	Reason Reason
}
