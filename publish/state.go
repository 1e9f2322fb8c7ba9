package publish

import "fmt"

// State is a step of one publish attempt.
type State int

const (
	Idle State = iota
	Sourcing
	Probing
	Compressing
	Uploading
	Encoding
	Ready
	Failed
)

var stateNames = [...]string{
	Idle:        "idle",
	Sourcing:    "sourcing",
	Probing:     "probing",
	Compressing: "compressing",
	Uploading:   "uploading",
	Encoding:    "encoding",
	Ready:       "ready",
	Failed:      "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool { return s == Ready || s == Failed }

// next lists the forward transitions. Failed is reachable from every
// non-idle, non-terminal state and is handled separately.
var next = map[State]State{
	Idle:        Sourcing,
	Sourcing:    Probing,
	Probing:     Compressing,
	Compressing: Uploading,
	Uploading:   Encoding,
	Encoding:    Ready,
}

func canTransition(from, to State) bool {
	if to == Failed {
		return from != Idle && !from.Terminal()
	}
	return next[from] == to
}
