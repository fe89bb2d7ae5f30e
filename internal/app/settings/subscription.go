package settings

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is a per-subscriber stream of entries for one key.
// Entries are buffered without bound, so a slow reader never loses an update.
type Subscription struct {
	id    string
	key   string
	store *Store

	mu      sync.Mutex
	backlog []Entry

	notify    chan struct{}
	out       chan Entry
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(store *Store, key string) *Subscription {
	return &Subscription{
		id:     uuid.New().String(),
		key:    key,
		store:  store,
		notify: make(chan struct{}, 1),
		out:    make(chan Entry),
		done:   make(chan struct{}),
	}
}

// ID returns the subscription ID.
func (sub *Subscription) ID() string {
	return sub.id
}

// Key returns the subscribed key.
func (sub *Subscription) Key() string {
	return sub.key
}

// C returns the delivery channel. It is closed after Close.
func (sub *Subscription) C() <-chan Entry {
	return sub.out
}

// Close stops delivery and detaches the subscription from the store.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		sub.store.unsubscribe(sub)
	})
}

// push appends e to the backlog. It never blocks.
func (sub *Subscription) push(e Entry) {
	sub.mu.Lock()
	sub.backlog = append(sub.backlog, e)
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

// pump moves backlog entries to the delivery channel until closed.
func (sub *Subscription) pump() {
	defer close(sub.out)

	for {
		sub.mu.Lock()
		if len(sub.backlog) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.notify:
				continue
			case <-sub.done:
				return
			}
		}
		e := sub.backlog[0]
		sub.backlog = sub.backlog[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- e:
		case <-sub.done:
			return
		}
	}
}
