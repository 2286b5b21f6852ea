package programstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
)

// ProgramState represents the lifecycle state of one managed program
type ProgramState string

const (
	// ProgramStateStopped is the initial state and the terminal state after
	// an explicit stop
	ProgramStateStopped ProgramState = "stopped"

	// ProgramStateStarting means a spawn is in progress
	ProgramStateStarting ProgramState = "starting"

	// ProgramStateRunning means the child process is alive
	ProgramStateRunning ProgramState = "running"

	// ProgramStateStopping means a stop signal was sent and the supervisor
	// is waiting for the child to exit
	ProgramStateStopping ProgramState = "stopping"

	// ProgramStateExited means the child exited without being asked to
	ProgramStateExited ProgramState = "exited"

	// ProgramStateBackoff means a respawn is scheduled after a delay
	ProgramStateBackoff ProgramState = "backoff"

	// ProgramStateFatal means the program gave up: spawn kept failing or the
	// restart budget is exhausted
	ProgramStateFatal ProgramState = "fatal"
)

// validTransitions defines the allowed state transition graph:
// STOPPED -> STARTING -> RUNNING -> (EXITED -> BACKOFF -> STARTING | STOPPING -> STOPPED)
var validTransitions = map[ProgramState][]ProgramState{
	ProgramStateStopped:  {ProgramStateStarting},
	ProgramStateStarting: {ProgramStateRunning, ProgramStateBackoff, ProgramStateFatal, ProgramStateExited, ProgramStateStopping},
	ProgramStateRunning:  {ProgramStateExited, ProgramStateStopping},
	ProgramStateStopping: {ProgramStateStopped},
	ProgramStateExited:   {ProgramStateStarting, ProgramStateBackoff, ProgramStateFatal, ProgramStateStopped},
	ProgramStateBackoff:  {ProgramStateStarting, ProgramStateFatal, ProgramStateStopped},
	ProgramStateFatal:    {ProgramStateStarting},
}

// operationStates defines which externally-triggered operations are allowed
// in which states
var operationStates = map[string][]ProgramState{
	"start":   {ProgramStateStopped, ProgramStateExited, ProgramStateFatal},
	"stop":    {ProgramStateStarting, ProgramStateRunning, ProgramStateBackoff, ProgramStateExited},
	"restart": {ProgramStateRunning, ProgramStateExited, ProgramStateFatal},
}

// StateInfo is a snapshot of the machine for diagnostics
type StateInfo struct {
	Name          string       `json:"name"`
	State         ProgramState `json:"state"`
	PreviousState ProgramState `json:"previous_state"`
	ChangedAt     time.Time    `json:"changed_at"`
	LastOperation string       `json:"last_operation,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
}

// Machine tracks the lifecycle state of one managed program and enforces
// the transition graph.
type Machine struct {
	name          string
	state         ProgramState
	previousState ProgramState
	changedAt     time.Time
	lastOperation string
	lastError     error
	logger        logging.Logger
	mutex         sync.Mutex
}

func NewMachine(name string, logger logging.Logger) *Machine {
	return &Machine{
		name:      name,
		state:     ProgramStateStopped,
		changedAt: time.Now(),
		logger:    logger,
	}
}

// Current returns the current state
func (m *Machine) Current() ProgramState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// ValidateOperation checks whether operation is allowed in the current state
func (m *Machine) ValidateOperation(operation string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	allowed, known := operationStates[operation]
	if !known {
		return errors.NewValidationError("unknown operation: "+operation, nil).WithContext("program", m.name)
	}
	for _, state := range allowed {
		if m.state == state {
			return nil
		}
	}
	return errors.NewValidationError(
		fmt.Sprintf("operation '%s' not allowed in state '%s'", operation, m.state),
		nil,
	).WithContext("program", m.name).WithContext("current_state", string(m.state))
}

// IsOperationAllowed reports whether operation is allowed in the current state
func (m *Machine) IsOperationAllowed(operation string) bool {
	return m.ValidateOperation(operation) == nil
}

// Transition moves the machine to target, recording the triggering operation
// and error. Invalid transitions are rejected.
func (m *Machine) Transition(target ProgramState, operation string, cause error) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.state == target {
		return nil
	}

	valid := false
	for _, allowed := range validTransitions[m.state] {
		if allowed == target {
			valid = true
			break
		}
	}
	if !valid {
		return errors.NewInternalError(
			fmt.Sprintf("invalid state transition %s -> %s", m.state, target),
			nil,
		).WithContext("program", m.name).WithContext("operation", operation)
	}

	m.logger.Debugf("State transition, program: %s, %s -> %s, operation: %s", m.name, m.state, target, operation)

	m.previousState = m.state
	m.state = target
	m.changedAt = time.Now()
	m.lastOperation = operation
	m.lastError = cause

	return nil
}

// GetStateInfo returns a diagnostic snapshot
func (m *Machine) GetStateInfo() StateInfo {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	info := StateInfo{
		Name:          m.name,
		State:         m.state,
		PreviousState: m.previousState,
		ChangedAt:     m.changedAt,
		LastOperation: m.lastOperation,
	}
	if m.lastError != nil {
		info.LastError = m.lastError.Error()
	}
	return info
}
