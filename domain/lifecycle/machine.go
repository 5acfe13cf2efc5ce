// Package lifecycle implements the resident plugin state machine. The host
// is authoritative for the status: plugin hooks only run for transitions
// the machine has accepted, and a failing hook leaves the status unchanged.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/reglet-dev/plughost/domain/entities"
	"github.com/reglet-dev/plughost/domain/errors"
)

// Event drives a transition.
type Event uint8

const (
	EventStart Event = iota
	EventSuspend
	EventResume
	EventStop
	EventReset
	EventCancel
	EventFault
)

// AllEvents lists every event.
var AllEvents = []Event{EventStart, EventSuspend, EventResume, EventStop, EventReset, EventCancel, EventFault}

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	case EventStop:
		return "stop"
	case EventReset:
		return "reset"
	case EventCancel:
		return "cancel"
	case EventFault:
		return "fault"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

type edge struct {
	from  entities.ExecutionStatus
	event Event
}

var transitions = map[edge]entities.ExecutionStatus{
	{entities.StatusIdle, EventStart}:       entities.StatusRunning,
	{entities.StatusRunning, EventSuspend}:  entities.StatusSuspended,
	{entities.StatusSuspended, EventResume}: entities.StatusRunning,
	{entities.StatusRunning, EventStop}:     entities.StatusCompleted,
	{entities.StatusSuspended, EventStop}:   entities.StatusCompleted,
	{entities.StatusCompleted, EventReset}:  entities.StatusIdle,
	{entities.StatusError, EventReset}:      entities.StatusIdle,
	{entities.StatusCancelled, EventReset}:  entities.StatusIdle,
	{entities.StatusRunning, EventCancel}:   entities.StatusCancelled,
	{entities.StatusSuspended, EventCancel}: entities.StatusCancelled,
	{entities.StatusRunning, EventFault}:    entities.StatusError,
	{entities.StatusSuspended, EventFault}:  entities.StatusError,
}

// Next returns the status reached by applying e in s, and false when the
// pair is not a legal transition.
func Next(s entities.ExecutionStatus, e Event) (entities.ExecutionStatus, bool) {
	to, ok := transitions[edge{s, e}]
	return to, ok
}

// Hook performs the plugin side of a transition.
type Hook func(ctx context.Context) error

// Machine holds one resident status. It is safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	state entities.ExecutionStatus
}

// New returns a machine in the idle state.
func New() *Machine {
	return &Machine{state: entities.StatusIdle}
}

// State returns the current status.
func (m *Machine) State() entities.ExecutionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies e. An illegal transition returns ErrInvalidTransition and
// skips hook. The lock is not held while hook runs, so a hook may observe
// State; if the status moved underneath it, the transition is rejected.
func (m *Machine) Fire(ctx context.Context, e Event, hook Hook) (entities.ExecutionStatus, error) {
	m.mu.Lock()
	from := m.state
	to, ok := Next(from, e)
	m.mu.Unlock()

	if !ok {
		return from, errors.Wrap(errors.CodeInvalidState,
			fmt.Sprintf("%s from %s", e, from), errors.ErrInvalidTransition)
	}

	if hook != nil {
		if err := hook(ctx); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return m.state, errors.Wrap(errors.CodeInvalidState,
			fmt.Sprintf("%s from %s: status changed to %s", e, from, m.state), errors.ErrInvalidTransition)
	}
	m.state = to
	return to, nil
}
