package processstatemachine

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
)

// ProcessState is the lifecycle state of one supervised executable
type ProcessState string

const (
	// ProcessStateIdle is the state before the first spawn
	ProcessStateIdle ProcessState = "idle"

	// ProcessStateSpawning means a child is being started
	ProcessStateSpawning ProcessState = "spawning"

	// ProcessStateRunning means the child is alive and being watched
	ProcessStateRunning ProcessState = "running"

	// ProcessStateExited means the child was reaped and the restart decision is pending
	ProcessStateExited ProcessState = "exited"

	// ProcessStateFailed means the executable could not be spawned. Terminal.
	ProcessStateFailed ProcessState = "failed"

	// ProcessStateStopped means supervision ended without a spawn error. Terminal.
	ProcessStateStopped ProcessState = "stopped"
)

// historyLimit bounds the retained transitions; supervision may restart forever.
const historyLimit = 64

// ProcessStateTransition represents a state transition with metadata
type ProcessStateTransition struct {
	From      ProcessState
	To        ProcessState
	Operation string
	Timestamp time.Time
	Error     error
}

// ProcessStateMachine validates and records the transitions of one monitor
type ProcessStateMachine struct {
	processID        string
	currentState     ProcessState
	transitions      []ProcessStateTransition
	transitionCount  int
	validTransitions map[ProcessState][]ProcessState
	mutex            sync.RWMutex
	logger           logging.Logger
}

// NewProcessStateMachine creates a state machine in the idle state
func NewProcessStateMachine(processID string, logger logging.Logger) *ProcessStateMachine {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	psm := &ProcessStateMachine{
		processID:    processID,
		currentState: ProcessStateIdle,
		transitions:  make([]ProcessStateTransition, 0),
		logger:       logger,
	}

	psm.validTransitions = map[ProcessState][]ProcessState{
		ProcessStateIdle: {
			ProcessStateSpawning, // first spawn
			ProcessStateStopped,  // cancelled before the first spawn
		},
		ProcessStateSpawning: {
			ProcessStateRunning, // spawn success
			ProcessStateFailed,  // spawn failure
		},
		ProcessStateRunning: {
			ProcessStateExited, // child reaped
		},
		ProcessStateExited: {
			ProcessStateSpawning, // restart
			ProcessStateStopped,  // restart declined or cancelled
		},
	}

	return psm
}

// GetCurrentState returns the current state (thread-safe)
func (psm *ProcessStateMachine) GetCurrentState() ProcessState {
	psm.mutex.RLock()
	defer psm.mutex.RUnlock()
	return psm.currentState
}

// CanTransition checks if a state transition is valid (thread-safe)
func (psm *ProcessStateMachine) CanTransition(to ProcessState) bool {
	psm.mutex.RLock()
	defer psm.mutex.RUnlock()
	return psm.canTransitionUnsafe(to)
}

// IsTerminal reports whether no further transitions are possible
func (psm *ProcessStateMachine) IsTerminal() bool {
	psm.mutex.RLock()
	defer psm.mutex.RUnlock()
	return len(psm.validTransitions[psm.currentState]) == 0
}

// Transition changes the state with validation (thread-safe)
func (psm *ProcessStateMachine) Transition(to ProcessState, operation string, err error) error {
	psm.mutex.Lock()
	defer psm.mutex.Unlock()

	if !psm.canTransitionUnsafe(to) {
		return errors.NewValidationError(
			fmt.Sprintf("invalid state transition from '%s' to '%s'", psm.currentState, to),
			nil,
		).WithContext("process_id", psm.processID).
			WithContext("from_state", string(psm.currentState)).
			WithContext("to_state", string(to)).
			WithContext("operation", operation)
	}

	from := psm.currentState
	psm.transitions = append(psm.transitions, ProcessStateTransition{
		From:      from,
		To:        to,
		Operation: operation,
		Timestamp: time.Now(),
		Error:     err,
	})
	if len(psm.transitions) > historyLimit {
		psm.transitions = psm.transitions[len(psm.transitions)-historyLimit:]
	}
	psm.transitionCount++
	psm.currentState = to

	if err != nil {
		psm.logger.Warnf("Process state transition failed, process: %s, %s->%s, operation: %s, error: %v",
			psm.processID, from, to, operation, err)
	} else {
		psm.logger.Debugf("Process state transition, process: %s, %s->%s, operation: %s",
			psm.processID, from, to, operation)
	}

	return nil
}

func (psm *ProcessStateMachine) canTransitionUnsafe(to ProcessState) bool {
	for _, validState := range psm.validTransitions[psm.currentState] {
		if validState == to {
			return true
		}
	}
	return false
}

// GetTransitionHistory returns the most recent transitions, oldest first
func (psm *ProcessStateMachine) GetTransitionHistory() []ProcessStateTransition {
	psm.mutex.RLock()
	defer psm.mutex.RUnlock()

	history := make([]ProcessStateTransition, len(psm.transitions))
	copy(history, psm.transitions)
	return history
}

// ProcessStateInfo is a snapshot of the state machine
type ProcessStateInfo struct {
	ProcessID       string
	CurrentState    ProcessState
	LastTransition  *ProcessStateTransition
	TransitionCount int
	ValidNextStates []ProcessState
}

// GetStateInfo returns a consistent snapshot
func (psm *ProcessStateMachine) GetStateInfo() ProcessStateInfo {
	psm.mutex.RLock()
	defer psm.mutex.RUnlock()

	var lastTransition *ProcessStateTransition
	if len(psm.transitions) > 0 {
		last := psm.transitions[len(psm.transitions)-1]
		lastTransition = &last
	}

	nextStates := make([]ProcessState, len(psm.validTransitions[psm.currentState]))
	copy(nextStates, psm.validTransitions[psm.currentState])

	return ProcessStateInfo{
		ProcessID:       psm.processID,
		CurrentState:    psm.currentState,
		LastTransition:  lastTransition,
		TransitionCount: psm.transitionCount,
		ValidNextStates: nextStates,
	}
}
