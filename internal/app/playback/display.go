package playback

import "github.com/osa030/requestbox/internal/domain/request"

// Mode represents what the public display shows.
type Mode int

const (
	ModeNone         Mode = iota // Nothing to show
	ModePlayingSong              // A request is playing
	ModeIdleFallback             // Idle fallback video
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModePlayingSong:
		return "PLAYING_SONG"
	case ModeIdleFallback:
		return "IDLE_FALLBACK"
	default:
		return "UNKNOWN"
	}
}

// Display is the derived display state. Request is set only in
// ModePlayingSong, IdleURL only in ModeIdleFallback.
type Display struct {
	Mode    Mode
	Request *request.Request
	IdleURL string
}

// Equal reports whether d and other would render the same.
func (d Display) Equal(other Display) bool {
	if d.Mode != other.Mode || d.IdleURL != other.IdleURL {
		return false
	}
	if d.Request == nil || other.Request == nil {
		return d.Request == nil && other.Request == nil
	}
	return d.Request.ID == other.Request.ID && d.Request.Status == other.Request.Status
}
