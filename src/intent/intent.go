// Package intent implements the intent-lock protocol: distributed mutual
// exclusion for externally-visible actions. Before acting on a shared
// resource, a node broadcasts a signed intent and holds it for a fixed
// period; if a competing intent for the same action and target shows up
// during the hold, the lexicographically smallest initiator identity wins
// and everyone else aborts. No coordinator, no leases, just deterministic
// conflict resolution that every correct node computes identically.
package intent

import (
	"fmt"
	"time"
)

// State is the lifecycle state of an intent.
type State int

const (
	// None is the zero state, before an intent is proposed.
	None State = iota
	// Held means the intent was admitted and its hold period is running.
	Held
	// Committed means the intent won and the action was released for execution.
	Committed
	// Aborted means the intent lost a conflict, failed its commit gate, or
	// was retracted by its initiator.
	Aborted
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case None:
		return "None"
	case Held:
		return "Held"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Intent is the tracked local view of one announced intent, ours or a
// competitor's.
type Intent struct {
	Notice    *Notice
	State     State
	ProposeAt time.Time
	DecidedAt time.Time
	Local     bool
}

// Key returns the conflict key: two intents conflict iff they share an
// action and a target.
func (i *Intent) Key() string {
	return IntentKey(i.Notice.Action, i.Notice.Target)
}

// IntentKey derives the conflict key for an action/target pair.
func IntentKey(action, target string) string {
	return fmt.Sprintf("%s|%s", action, target)
}
