package conversation

import "errors"

// Status is the run state of a conversation
type Status string

const (
	// StatusIdle is paused; nothing advances until toggled
	StatusIdle Status = "idle"
	// StatusRunning advances one turn every pacing delay
	StatusRunning Status = "running"
	// StatusLoading is running with a generation request in flight
	StatusLoading Status = "loading"
	// StatusEditing has one message open in the editor; implies paused
	StatusEditing Status = "editing"
	// StatusBlocked cannot run until the generation service is usable again
	StatusBlocked Status = "blocked"
)

var (
	ErrBlocked       = errors.New("generation is blocked")
	ErrEditing       = errors.New("a message is being edited")
	ErrNotEditing    = errors.New("no message is being edited")
	ErrInvalidSender = errors.New("sender must be one of the two characters or System")
)

// state is one of the five run states. Only the fields belonging to the current status
// are ever set: states are built through the constructors below, never mutated in place.
type state struct {
	status    Status
	editingID string
}

func idle() state    { return state{status: StatusIdle} }
func running() state { return state{status: StatusRunning} }
func loading() state { return state{status: StatusLoading} }
func blocked() state { return state{status: StatusBlocked} }

func editing(id string) state {
	return state{status: StatusEditing, editingID: id}
}

// active reports whether the state counts as "conversing"
func (s state) active() bool {
	return s.status == StatusRunning || s.status == StatusLoading
}
