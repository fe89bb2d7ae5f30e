// Package playback drives the request queue forward and derives what the
// public display shows.
package playback

// State represents the state of the single shared player.
type State int

const (
	StateIdle   State = iota // No request playing
	StateActive              // A request is playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}
