package queue

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/requestbox/internal/domain/request"
)

type memoryRecorder struct {
	mu   sync.Mutex
	seen []request.Request
}

func (m *memoryRecorder) RecordRequest(r request.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, r)
}

func (m *memoryRecorder) statuses() []request.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]request.Status, len(m.seen))
	for i, r := range m.seen {
		out[i] = r.Status
	}
	return out
}

var base = time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)

func newRequest(id string, offset time.Duration) request.Request {
	return request.Request{
		ID:           id,
		Title:        "Song " + id,
		RequesterRef: "tok-" + id,
		SubmittedAt:  base.Add(offset),
		PaymentState: request.PaymentConfirmed,
	}
}

func ids(reqs []request.Request) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}

func TestQueue_Enqueue_OrdersBySubmittedAtThenID(t *testing.T) {
	q := New(nil)

	_, err := q.Enqueue(newRequest("c", 2*time.Second))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("b", time.Second))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("a", time.Second))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("d", 0))
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "a", "b", "c"}, ids(q.Snapshot()))
	for _, r := range q.Snapshot() {
		assert.Equal(t, request.StatusQueued, r.Status)
	}
}

func TestQueue_Snapshot_AlwaysSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		q := New(nil)
		for i := 0; i < 50; i++ {
			r := newRequest(fmt.Sprintf("r%03d", rng.Intn(1000)+i*1000), time.Duration(rng.Intn(10))*time.Millisecond)
			_, err := q.Enqueue(r)
			require.NoError(t, err)

			snap := q.Snapshot()
			assert.True(t, sort.SliceIsSorted(snap, func(i, j int) bool {
				return snap[i].Before(&snap[j])
			}), "snapshot not sorted after %d enqueues", i+1)
		}
	}
}

func TestQueue_Enqueue_Errors(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)

	_, err = q.Enqueue(newRequest("a", time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.True(t, errors.Is(err, ErrConcurrencyViolation))

	pending := newRequest("p", 0)
	pending.PaymentState = request.PaymentPending
	_, err = q.Enqueue(pending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, request.ErrValidation))

	rejected := newRequest("r", 0)
	rejected.Status = request.StatusRejected
	_, err = q.Enqueue(rejected)
	require.Error(t, err)

	assert.Equal(t, 1, q.Len())
}

func TestQueue_Enqueue_DuplicateOfPlaying(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)
	_, _, err = q.StartNext()
	require.NoError(t, err)

	_, err = q.Enqueue(newRequest("a", time.Second))
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestQueue_PeekNext(t *testing.T) {
	q := New(nil)
	_, ok := q.PeekNext()
	assert.False(t, ok)

	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)

	r, ok := q.PeekNext()
	require.True(t, ok)
	assert.Equal(t, "a", r.ID)
	assert.Equal(t, 1, q.Len(), "peek must not mutate")
}

func TestQueue_StartNext(t *testing.T) {
	q := New(nil)

	_, ok, err := q.StartNext()
	require.NoError(t, err)
	assert.False(t, ok, "empty queue has nothing to start")

	_, err = q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("b", time.Second))
	require.NoError(t, err)

	r, ok, err := q.StartNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", r.ID)
	assert.Equal(t, request.StatusPlaying, r.Status)

	before := q.Snapshot()
	_, ok, err = q.StartNext()
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrAlreadyPlaying))
	assert.Equal(t, before, q.Snapshot(), "failed StartNext must not change state")

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
}

func TestQueue_CompleteCurrent_Twice(t *testing.T) {
	rec := &memoryRecorder{}
	q := New(rec)
	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("b", time.Second))
	require.NoError(t, err)
	_, _, err = q.StartNext()
	require.NoError(t, err)

	done, err := q.CompleteCurrent("a")
	require.NoError(t, err)
	assert.Equal(t, request.StatusPlayed, done.Status)

	snap := q.Snapshot()
	_, err = q.CompleteCurrent("a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotPlaying))
	assert.Equal(t, snap, q.Snapshot())
	_, playing := q.Current()
	assert.False(t, playing)

	assert.Equal(t, []request.Status{
		request.StatusQueued, request.StatusQueued, request.StatusPlaying, request.StatusPlayed,
	}, rec.statuses())
}

func TestQueue_CompleteCurrent_WrongID(t *testing.T) {
	q := New(nil)
	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("b", time.Second))
	require.NoError(t, err)
	_, _, err = q.StartNext()
	require.NoError(t, err)

	_, err = q.CompleteCurrent("b")
	assert.True(t, errors.Is(err, ErrNotPlaying))

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.ID)
}

func TestQueue_Cancel(t *testing.T) {
	q := New(nil)
	for i, id := range []string{"s1", "s2", "s3"} {
		_, err := q.Enqueue(newRequest(id, time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	_, _, err := q.StartNext()
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "playing request", id: "s1", wantErr: ErrNotCancellable},
		{name: "queued request", id: "s2"},
		{name: "already cancelled", id: "s2", wantErr: ErrNotCancellable},
		{name: "unknown request", id: "nope", wantErr: ErrNotCancellable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := q.Cancel(tt.id)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, request.StatusCancelled, r.Status)
		})
	}

	assert.Equal(t, []string{"s3"}, ids(q.Snapshot()))
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "s1", cur.ID)
}

func TestQueue_Observer(t *testing.T) {
	q := New(nil)

	var calls int
	q.SetObserver(func() {
		calls++
		// The lock is released before the observer runs.
		_ = q.Snapshot()
	})

	_, err := q.Enqueue(newRequest("a", 0))
	require.NoError(t, err)
	_, err = q.Enqueue(newRequest("b", time.Second))
	require.NoError(t, err)
	_, err = q.Cancel("b")
	require.NoError(t, err)
	_, err = q.Cancel("b")
	require.Error(t, err)
	_, _, err = q.StartNext()
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
}

func TestQueue_ActiveAndPendingFor(t *testing.T) {
	q := New(nil)
	a := newRequest("a", 0)
	b := newRequest("b", time.Second)
	b.RequesterRef = a.RequesterRef
	c := newRequest("c", 2*time.Second)
	for _, r := range []request.Request{a, b, c} {
		_, err := q.Enqueue(r)
		require.NoError(t, err)
	}
	_, _, err := q.StartNext()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(q.Active()))
	assert.Equal(t, 2, q.PendingFor(a.RequesterRef))
	assert.Equal(t, 1, q.PendingFor(c.RequesterRef))
	assert.Equal(t, 0, q.PendingFor("nobody"))
}

func TestQueue_Restore(t *testing.T) {
	playing := newRequest("p", 0)
	playing.Status = request.StatusPlaying
	q1 := newRequest("q1", 2*time.Second)
	q1.Status = request.StatusQueued
	q2 := newRequest("q2", time.Second)
	q2.Status = request.StatusQueued

	q := New(nil)
	require.NoError(t, q.Restore([]request.Request{q1, playing, q2}))

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "p", cur.ID)
	assert.Equal(t, []string{"q2", "q1"}, ids(q.Snapshot()))

	err := q.Restore(nil)
	assert.True(t, errors.Is(err, ErrInvalidRestore), "restore into non-empty queue")

	second := playing
	second.ID = "p2"
	err = New(nil).Restore([]request.Request{playing, second})
	assert.True(t, errors.Is(err, ErrInvalidRestore), "two playing requests")

	played := newRequest("x", 0)
	played.Status = request.StatusPlayed
	err = New(nil).Restore([]request.Request{played})
	assert.True(t, errors.Is(err, ErrInvalidRestore), "terminal request")
}

func TestQueue_ConcurrentAtMostOnePlaying(t *testing.T) {
	q := New(nil)
	for i := 0; i < 200; i++ {
		_, err := q.Enqueue(newRequest(fmt.Sprintf("r%03d", i), time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
	}

	var (
		wg       sync.WaitGroup
		playing  atomic.Int32
		violated atomic.Bool
		started  atomic.Int32
	)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r, ok, err := q.StartNext()
				if err == nil && ok {
					if playing.Add(1) > 1 {
						violated.Store(true)
					}
					started.Add(1)
					playing.Add(-1)
					_, _ = q.CompleteCurrent(r.ID)
					continue
				}
				if w%2 == 0 {
					if next, ok := q.PeekNext(); ok {
						_, _ = q.Cancel(next.ID)
					}
				}
			}
		}(w)
	}

	// Observer goroutine: never sees more than one PLAYING request.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			active := q.Active()
			n := 0
			for _, r := range active {
				if r.Status == request.StatusPlaying {
					n++
				}
			}
			if n > 1 {
				violated.Store(true)
			}
		}
	}()

	wg.Wait()
	<-done

	assert.False(t, violated.Load())
	assert.Greater(t, started.Load(), int32(0))
}
