package playback

import "github.com/osa030/requestbox/internal/domain/request"

// EventType represents a playback event type.
type EventType int

const (
	EventSongStarted    EventType = iota // Request started playing
	EventSongFinished                    // Playing request reported finished
	EventSongSkipped                     // Playing request removed by an admin
	EventQueueEmpty                      // Player went idle with nothing queued
	EventDisplayChanged                  // Display state changed without a song transition
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSongStarted:
		return "song_started"
	case EventSongFinished:
		return "song_finished"
	case EventSongSkipped:
		return "song_skipped"
	case EventQueueEmpty:
		return "queue_empty"
	case EventDisplayChanged:
		return "display_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type    EventType
	Request *request.Request // Request concerned (nil for some events)
	State   State            // Player state after the event
	Display Display          // Display state after the event
}
