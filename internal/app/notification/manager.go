// Package notification broadcasts display changes to connected watchers.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/app/playback"
)

// Notification is one display change as seen by a watcher.
type Notification struct {
	SequenceNo uint64
	Display    playback.Display
	At         time.Time
}

// Subscription receives notifications for one watcher. Only the latest
// undelivered notification is kept: a slow watcher skips intermediate states
// but always converges on the current display.
type Subscription struct {
	id      string
	mailbox chan Notification
	done    chan struct{}
	once    sync.Once
	manager *Manager
}

// ID returns the subscription ID.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the notification channel. It is never closed; use Done to detect
// the end of the subscription.
func (s *Subscription) C() <-chan Notification {
	return s.mailbox
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.manager.Unsubscribe(s.id)
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// deliver replaces any pending notification with n. Never blocks.
func (s *Subscription) deliver(n Notification) {
	for {
		select {
		case s.mailbox <- n:
			return
		default:
		}
		select {
		case <-s.mailbox:
		default:
		}
	}
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	sequenceNo    uint64
	latest        *Notification
	closed        bool
	now           func() time.Time
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*Subscription),
		now:           time.Now,
	}
}

// Subscribe adds a new subscription. The most recent notification, if any,
// is delivered immediately.
func (m *Manager) Subscribe() *Subscription {
	sub := &Subscription{
		id:      uuid.New().String(),
		mailbox: make(chan Notification, 1),
		done:    make(chan struct{}),
		manager: m,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		sub.stop()
		return sub
	}
	m.subscriptions[sub.id] = sub
	if m.latest != nil {
		sub.deliver(*m.latest)
	}
	zlog.Debug().Msgf("notification: subscribed id=%s subscribers=%d", sub.id, len(m.subscriptions))
	return sub
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		sub.stop()
	}
}

// Publish stamps d with the next sequence number and hands it to every subscriber.
func (m *Manager) Publish(d playback.Display) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.sequenceNo++
	n := Notification{SequenceNo: m.sequenceNo, Display: d, At: m.now()}
	m.latest = &n

	for _, sub := range m.subscriptions {
		sub.deliver(n)
	}
	zlog.Debug().Msgf("notification: broadcast seq=%d mode=%s subscribers=%d", n.SequenceNo, d.Mode, len(m.subscriptions))
}

// SequenceNo returns the sequence number of the last broadcast.
func (m *Manager) SequenceNo() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close ends every subscription. Later publishes are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for id, sub := range m.subscriptions {
		sub.stop()
		delete(m.subscriptions, id)
	}
}
