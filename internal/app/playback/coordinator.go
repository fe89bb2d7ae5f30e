package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/app/queue"
	"github.com/osa030/requestbox/internal/app/settings"
	"github.com/osa030/requestbox/internal/domain/request"
)

// Queue is the part of the request queue the coordinator drives.
type Queue interface {
	StartNext() (request.Request, bool, error)
	CompleteCurrent(id string) (request.Request, error)
	Current() (request.Request, bool)
	Len() int
}

// Settings is the read side of the settings store.
type Settings interface {
	Bool(key string) bool
	String(key string) string
}

// Publisher receives every new display state. Publish must not block.
type Publisher interface {
	Publish(d Display)
}

// displayKeys are the settings that affect the display.
var displayKeys = map[string]bool{
	settings.KeyIdleVideoActive: true,
	settings.KeyIdleVideoURL:    true,
}

// Coordinator advances the queue one request at a time and derives the
// display state. Advance and finish sequences are serialized by mu; the
// display itself is never stored and is recomputed from queue and settings.
type Coordinator struct {
	mu sync.Mutex

	queue     Queue
	settings  Settings
	publisher Publisher

	last      Display // last published display
	published bool

	// Events
	eventCh chan Event
	closed  bool

	// Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator creates a new playback coordinator. publisher may be nil.
func NewCoordinator(q Queue, s Settings, publisher Publisher) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		queue:     q,
		settings:  s,
		publisher: publisher,
		eventCh:   make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Events returns the event channel.
func (c *Coordinator) Events() <-chan Event {
	return c.eventCh
}

// State returns the player state.
func (c *Coordinator) State() State {
	if _, ok := c.queue.Current(); ok {
		return StateActive
	}
	return StateIdle
}

// CurrentDisplay computes what the display should show right now.
// The idle fallback is shown only when explicitly enabled with a URL;
// an empty queue alone yields ModeNone.
func (c *Coordinator) CurrentDisplay() Display {
	if r, ok := c.queue.Current(); ok {
		return Display{Mode: ModePlayingSong, Request: &r}
	}

	idleActive := c.settings.Bool(settings.KeyIdleVideoActive)
	idleURL := c.settings.String(settings.KeyIdleVideoURL)
	if idleActive && idleURL != "" {
		return Display{Mode: ModeIdleFallback, IdleURL: idleURL}
	}
	return Display{Mode: ModeNone}
}

// Advance starts the next queued request if the player is idle.
// ok is false when nothing was queued.
func (c *Coordinator) Advance() (r request.Request, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked()
}

// OnSongFinished handles a completion report from the playback device.
// A report for a request that is no longer playing is stale: it is logged
// and discarded.
func (c *Coordinator) OnSongFinished(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	done, err := c.queue.CompleteCurrent(id)
	if err != nil {
		if errors.Is(err, queue.ErrNotPlaying) {
			zlog.Warn().Msgf("playback: discarded stale finish signal: request_id=%s", id)
			return nil
		}
		return err
	}

	zlog.Info().Msgf("playback: song finished: request_id=%s title=%s", done.ID, done.Title)
	c.sendEventLocked(Event{Type: EventSongFinished, Request: &done, State: StateIdle})

	return c.readvanceLocked()
}

// Skip force-removes the playing request on behalf of an admin. It counts as
// an implicit finish and the next request starts immediately. Unlike a device
// report, a stale id is returned to the caller as queue.ErrNotPlaying.
func (c *Coordinator) Skip(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	skipped, err := c.queue.CompleteCurrent(id)
	if err != nil {
		return err
	}

	zlog.Info().Msgf("playback: song skipped: request_id=%s title=%s", skipped.ID, skipped.Title)
	c.sendEventLocked(Event{Type: EventSongSkipped, Request: &skipped, State: StateIdle})

	return c.readvanceLocked()
}

// NotifyQueueChanged is called after every enqueue or cancel. When the player
// is idle and something is queued, playback starts before this returns.
func (c *Coordinator) NotifyQueueChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, playing := c.queue.Current(); !playing && c.queue.Len() > 0 {
		if _, _, err := c.advanceLocked(); err != nil {
			zlog.Error().Msgf("playback: advance after queue change: %v", err)
		}
		return
	}
	c.publishLocked(EventDisplayChanged)
}

// OnSettingChanged re-evaluates the display when a display-affecting key changes.
func (c *Coordinator) OnSettingChanged(e settings.Entry) {
	if !displayKeys[e.Key] {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLocked(EventDisplayChanged)
}

// Close closes the coordinator and its event channel.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.cancel()
	c.closed = true
	close(c.eventCh)
}

// advanceLocked starts the next request.
// Must be called with lock held.
func (c *Coordinator) advanceLocked() (request.Request, bool, error) {
	r, ok, err := c.queue.StartNext()
	if err != nil {
		return request.Request{}, false, err
	}
	if !ok {
		return request.Request{}, false, nil
	}

	zlog.Info().Msgf("playback: song started: request_id=%s title=%s queue_size=%d", r.ID, r.Title, c.queue.Len())
	c.sendEventLocked(Event{Type: EventSongStarted, Request: &r, State: StateActive})
	c.publishLocked(EventSongStarted)
	return r, true, nil
}

// readvanceLocked advances after the playing request left the player.
// Must be called with lock held.
func (c *Coordinator) readvanceLocked() error {
	_, ok, err := c.advanceLocked()
	if err != nil {
		return errors.Wrap(err, "advance after finish")
	}
	if !ok {
		zlog.Info().Msg("playback: queue empty, player idle")
		c.sendEventLocked(Event{Type: EventQueueEmpty, State: StateIdle})
		c.publishLocked(EventQueueEmpty)
	}
	return nil
}

// publishLocked pushes the current display to the publisher if it changed.
// Must be called with lock held.
func (c *Coordinator) publishLocked(cause EventType) {
	d := c.CurrentDisplay()
	if c.published && c.last.Equal(d) {
		return
	}
	c.last = d
	c.published = true

	if cause == EventDisplayChanged {
		c.sendEventLocked(Event{Type: EventDisplayChanged, State: c.State()})
	}
	if c.publisher != nil {
		c.publisher.Publish(d)
	}
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Coordinator) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	e.Display = c.CurrentDisplay()
	select {
	case c.eventCh <- e:
		// Successfully sent
	case <-c.ctx.Done():
		// Context cancelled, don't send
	default:
		zlog.Warn().Msgf("playback: event channel full, dropped event: type=%s", e.Type)
	}
}
