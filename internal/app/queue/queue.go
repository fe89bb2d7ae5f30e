// Package queue provides the ordered working set of admitted requests.
package queue

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/domain/request"
)

// Recorder receives every committed request transition for write-behind persistence.
// RecordRequest must not block.
type Recorder interface {
	RecordRequest(r request.Request)
}

// Queue holds QUEUED requests in playback order plus the single PLAYING request.
// All mutations are serialized; reads take a consistent copy.
type Queue struct {
	mu sync.RWMutex

	queued  []request.Request   // QUEUED, ordered by (SubmittedAt, ID)
	current *request.Request    // PLAYING, at most one
	ids     map[string]struct{} // IDs of queued + current

	recorder Recorder
	observer func()
}

// New creates an empty queue. recorder may be nil.
func New(recorder Recorder) *Queue {
	return &Queue{
		queued:   make([]request.Request, 0),
		ids:      make(map[string]struct{}),
		recorder: recorder,
	}
}

// SetObserver registers fn to be called after every successful Enqueue or Cancel.
// fn runs synchronously on the mutating goroutine, after the queue lock is released.
func (q *Queue) SetObserver(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observer = fn
}

// Enqueue inserts an admitted request in playback order and marks it QUEUED.
func (q *Queue) Enqueue(r request.Request) (request.Request, error) {
	if r.PaymentState != request.PaymentNotRequired && r.PaymentState != request.PaymentConfirmed {
		return request.Request{}, errors.Wrapf(ErrNotAdmitted, "request %s has payment state %s", r.ID, r.PaymentState)
	}
	if r.Status != request.StatusQueued {
		if err := r.Transition(request.StatusQueued); err != nil {
			return request.Request{}, errors.Mark(err, ErrNotAdmitted)
		}
	}

	q.mu.Lock()
	if _, exists := q.ids[r.ID]; exists {
		q.mu.Unlock()
		return request.Request{}, errors.Wrapf(ErrDuplicateID, "enqueue %s", r.ID)
	}
	q.insertLocked(r)
	q.recordLocked(r)
	size := len(q.queued)
	observer := q.observer
	q.mu.Unlock()

	zlog.Debug().Msgf("queue: enqueued request_id=%s title=%s queue_size=%d", r.ID, r.Title, size)

	if observer != nil {
		observer()
	}
	return r, nil
}

// PeekNext returns the earliest QUEUED request without mutating state.
func (q *Queue) PeekNext() (request.Request, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.queued) == 0 {
		return request.Request{}, false
	}
	return q.queued[0], true
}

// StartNext moves the earliest QUEUED request to PLAYING and returns it.
// ok is false when nothing is queued. Fails with ErrAlreadyPlaying, without
// any state change, while another request is PLAYING.
func (q *Queue) StartNext() (r request.Request, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil {
		return request.Request{}, false, errors.Wrapf(ErrAlreadyPlaying, "request %s is playing", q.current.ID)
	}
	if len(q.queued) == 0 {
		return request.Request{}, false, nil
	}

	next := q.queued[0]
	if err := next.Transition(request.StatusPlaying); err != nil {
		return request.Request{}, false, err
	}
	q.queued = q.queued[1:]
	q.current = &next
	q.recordLocked(next)

	return next, true, nil
}

// CompleteCurrent marks the PLAYING request with id as PLAYED and drops it
// from the working set. Fails with ErrNotPlaying when id is not the PLAYING request.
func (q *Queue) CompleteCurrent(id string) (request.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil || q.current.ID != id {
		return request.Request{}, errors.Wrapf(ErrNotPlaying, "complete %s", id)
	}

	done := *q.current
	if err := done.Transition(request.StatusPlayed); err != nil {
		return request.Request{}, err
	}
	q.current = nil
	delete(q.ids, id)
	q.recordLocked(done)

	return done, nil
}

// Cancel removes a QUEUED request. Fails with ErrNotCancellable when the
// request is PLAYING or no longer present.
func (q *Queue) Cancel(id string) (request.Request, error) {
	q.mu.Lock()

	idx := q.indexLocked(id)
	if idx < 0 {
		playing := q.current != nil && q.current.ID == id
		q.mu.Unlock()
		if playing {
			return request.Request{}, errors.Wrapf(ErrNotCancellable, "request %s is playing", id)
		}
		return request.Request{}, errors.Wrapf(ErrNotCancellable, "request %s is not queued", id)
	}

	cancelled := q.queued[idx]
	if err := cancelled.Transition(request.StatusCancelled); err != nil {
		q.mu.Unlock()
		return request.Request{}, err
	}
	q.queued = append(q.queued[:idx], q.queued[idx+1:]...)
	delete(q.ids, id)
	q.recordLocked(cancelled)
	observer := q.observer
	q.mu.Unlock()

	zlog.Debug().Msgf("queue: cancelled request_id=%s title=%s", cancelled.ID, cancelled.Title)

	if observer != nil {
		observer()
	}
	return cancelled, nil
}

// Snapshot returns a point-in-time copy of all QUEUED requests in playback order.
func (q *Queue) Snapshot() []request.Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]request.Request, len(q.queued))
	copy(result, q.queued)
	return result
}

// Current returns the PLAYING request.
func (q *Queue) Current() (request.Request, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current == nil {
		return request.Request{}, false
	}
	return *q.current, true
}

// Len returns the number of QUEUED requests.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queued)
}

// Active returns the PLAYING request (if any) followed by the QUEUED ones.
func (q *Queue) Active() []request.Request {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]request.Request, 0, len(q.queued)+1)
	if q.current != nil {
		result = append(result, *q.current)
	}
	result = append(result, q.queued...)
	return result
}

// PendingFor returns how many active requests belong to requesterRef.
func (q *Queue) PendingFor(requesterRef string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := 0
	if q.current != nil && q.current.RequesterRef == requesterRef {
		n++
	}
	for _, r := range q.queued {
		if r.RequesterRef == requesterRef {
			n++
		}
	}
	return n
}

// Restore loads a recovered working set into an empty queue.
// Only QUEUED requests and at most one PLAYING request are accepted.
func (q *Queue) Restore(reqs []request.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) > 0 {
		return errors.Wrap(ErrInvalidRestore, "queue is not empty")
	}

	for _, r := range reqs {
		if _, exists := q.ids[r.ID]; exists {
			return errors.Wrapf(ErrInvalidRestore, "duplicate request %s", r.ID)
		}
		switch r.Status {
		case request.StatusQueued:
			q.insertLocked(r)
		case request.StatusPlaying:
			if q.current != nil {
				return errors.Wrapf(ErrInvalidRestore, "requests %s and %s both playing", q.current.ID, r.ID)
			}
			playing := r
			q.current = &playing
			q.ids[r.ID] = struct{}{}
		default:
			return errors.Wrapf(ErrInvalidRestore, "request %s has status %s", r.ID, r.Status)
		}
	}
	return nil
}

func (q *Queue) insertLocked(r request.Request) {
	idx := sort.Search(len(q.queued), func(i int) bool {
		return r.Before(&q.queued[i])
	})
	q.queued = append(q.queued, request.Request{})
	copy(q.queued[idx+1:], q.queued[idx:])
	q.queued[idx] = r
	q.ids[r.ID] = struct{}{}
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.queued {
		if q.queued[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) recordLocked(r request.Request) {
	if q.recorder != nil {
		q.recorder.RecordRequest(r)
	}
}
