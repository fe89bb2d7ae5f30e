package settings

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Recorder receives every committed setting for write-behind persistence.
type Recorder interface {
	RecordSetting(e Entry)
}

// Store holds the live settings and serves consistent reads to concurrent callers.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	subs     map[string]map[string]*Subscription // key -> subscription ID -> subscription
	hooks    []func(Entry)
	recorder Recorder
}

// NewStore creates an empty settings store. recorder may be nil.
func NewStore(recorder Recorder) *Store {
	return &Store{
		entries:  make(map[string]Entry),
		subs:     make(map[string]map[string]*Subscription),
		recorder: recorder,
	}
}

// Get returns the entry for key. An unknown key is a normal empty result.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// Bool returns the boolean value of key, or false when missing or not a boolean.
func (s *Store) Bool(key string) bool {
	e, ok := s.Get(key)
	if !ok {
		return false
	}
	v, _ := e.Bool()
	return v
}

// String returns the raw value of key, or "" when missing.
func (s *Store) String(key string) string {
	e, _ := s.Get(key)
	return e.Value
}

// List returns all entries sorted by key.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Set upserts key with value of the given kind.
// A malformed value, or a kind that differs from the key's established kind,
// fails with ErrInvalidValue and leaves the store unchanged.
func (s *Store) Set(key, value string, kind Kind) (Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, errors.Wrap(ErrInvalidValue, "key must not be empty")
	}
	if want, ok := knownKinds[key]; ok && want != kind {
		return Entry{}, errors.Wrapf(ErrInvalidValue, "key %s must be %s, got %s", key, want, kind)
	}
	if err := validateValue(kind, value); err != nil {
		zlog.Warn().Msgf("settings: rejected set: key=%s value=%q kind=%s: %v", key, value, kind, err)
		return Entry{}, errors.Wrapf(err, "set %s", key)
	}

	e := Entry{Key: key, Value: value, Kind: kind}

	s.mu.Lock()
	if prev, ok := s.entries[key]; ok && prev.Kind != kind {
		s.mu.Unlock()
		return Entry{}, errors.Wrapf(ErrInvalidValue, "key %s is %s, got %s", key, prev.Kind, kind)
	}
	s.entries[key] = e
	if s.recorder != nil {
		s.recorder.RecordSetting(e)
	}
	// Delivered under the lock so every subscriber sees sets in commit order.
	for _, sub := range s.subs[key] {
		sub.push(e)
	}
	hooks := make([]func(Entry), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	zlog.Info().Msgf("settings: updated key=%s value=%q kind=%s", key, value, kind)

	for _, h := range hooks {
		h(e)
	}
	return e, nil
}

// OnChange registers fn to run after every successful Set.
// Hooks run synchronously on the setting goroutine, after the store lock is released.
func (s *Store) OnChange(fn func(Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Subscribe starts a new subscription for key. The current value, if any,
// is delivered first, followed by every subsequent successful Set.
func (s *Store) Subscribe(key string) *Subscription {
	sub := newSubscription(s, key)

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		sub.push(e)
	}
	if s.subs[key] == nil {
		s.subs[key] = make(map[string]*Subscription)
	}
	s.subs[key][sub.id] = sub
	s.mu.Unlock()

	go sub.pump()
	return sub
}

// Entries returns a lazy, infinite sequence of entries for key that ends when
// ctx is done or the consumer stops. Each range over it is a fresh subscription.
func (s *Store) Entries(ctx context.Context, key string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		sub := s.Subscribe(key)
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C():
				if !ok || !yield(e) {
					return
				}
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.subs {
		n += len(m)
	}
	return n
}

// Close ends all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	subs := make([]*Subscription, 0)
	for _, m := range s.subs {
		for _, sub := range m {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.subs[sub.key]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(s.subs, sub.key)
		}
	}
}
