package runner

import "fmt"

// State is a position in the streaming state machine. A non-streamed run
// moves from Idle straight to Done or Failed.
//
//	AwaitingEvent -> Writing -> Flushed -> AwaitingEvent
//	AwaitingEvent -> Done    (sequence exhausted)
//	AwaitingEvent -> Failed  (stream reported an error)
//	Writing       -> Failed  (stdout write or flush failed)
type State int

const (
	StateIdle State = iota
	StateAwaitingEvent
	StateWriting
	StateFlushed
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateAwaitingEvent: "awaiting_event",
	StateWriting:       "writing",
	StateFlushed:       "flushed",
	StateDone:          "done",
	StateFailed:        "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:          {StateAwaitingEvent, StateDone, StateFailed},
	StateAwaitingEvent: {StateWriting, StateDone, StateFailed},
	StateWriting:       {StateFlushed, StateFailed},
	StateFlushed:       {StateAwaitingEvent},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
