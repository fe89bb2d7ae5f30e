package settings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recordingRecorder) RecordSetting(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func receive(t *testing.T, sub *Subscription) Entry {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
		return Entry{}
	}
}

func TestStore_Set_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		kind    Kind
		wantErr bool
	}{
		{name: "boolean true", key: KeyFreeMode, value: "true", kind: KindBoolean},
		{name: "boolean false", key: KeyIdleVideoActive, value: "false", kind: KindBoolean},
		{name: "boolean rejects 1", key: KeyIdleVideoActive, value: "1", kind: KindBoolean, wantErr: true},
		{name: "boolean rejects TRUE", key: KeyFreeMode, value: "TRUE", kind: KindBoolean, wantErr: true},
		{name: "boolean rejects yes", key: KeyFreeMode, value: "yes", kind: KindBoolean, wantErr: true},
		{name: "known boolean key as string", key: KeyIdleVideoActive, value: "true", kind: KindString, wantErr: true},
		{name: "string url", key: KeyIdleVideoURL, value: "http://x/idle.mp4", kind: KindString},
		{name: "number", key: "max_queue", value: "12.5", kind: KindNumber},
		{name: "number rejects text", key: "max_queue", value: "many", kind: KindNumber, wantErr: true},
		{name: "number rejects NaN", key: "max_queue", value: "NaN", kind: KindNumber, wantErr: true},
		{name: "empty key", key: " ", value: "x", kind: KindString, wantErr: true},
		{name: "unknown kind", key: "custom", value: "x", kind: Kind("json"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(nil)
			_, err := s.Set(tt.key, tt.value, tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidValue))
				_, ok := s.Get(tt.key)
				assert.False(t, ok, "failed set must not store anything")
				return
			}
			require.NoError(t, err)
			e, ok := s.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, e.Value)
			assert.Equal(t, tt.kind, e.Kind)
		})
	}
}

func TestStore_Set_KindIsSticky(t *testing.T) {
	s := NewStore(nil)

	_, err := s.Set("volume", "7", KindNumber)
	require.NoError(t, err)

	_, err = s.Set("volume", "loud", KindString)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Equal(t, "7", s.String("volume"))
}

func TestStore_Get_UnknownKey(t *testing.T) {
	s := NewStore(nil)
	_, ok := s.Get("missing")
	assert.False(t, ok)
	assert.False(t, s.Bool("missing"))
	assert.Equal(t, "", s.String("missing"))
}

func TestStore_Set_IdempotentAndRecorded(t *testing.T) {
	rec := &recordingRecorder{}
	s := NewStore(rec)

	for i := 0; i < 2; i++ {
		_, err := s.Set(KeyFreeMode, "true", KindBoolean)
		require.NoError(t, err)
	}
	assert.True(t, s.Bool(KeyFreeMode))
	assert.Len(t, s.List(), 1)
	assert.Len(t, rec.entries, 2)
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore(nil)

	var got []string
	s.OnChange(func(e Entry) {
		// Hooks may read the store without deadlocking.
		got = append(got, e.Key+"="+s.String(e.Key))
	})

	_, err := s.Set(KeyIdleVideoURL, "http://x/idle.mp4", KindString)
	require.NoError(t, err)
	_, err = s.Set(KeyIdleVideoActive, "maybe", KindBoolean)
	require.Error(t, err)

	assert.Equal(t, []string{"idle_video_url=http://x/idle.mp4"}, got)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Set(KeyFreeMode, "false", KindBoolean)
	require.NoError(t, err)

	sub := s.Subscribe(KeyFreeMode)
	defer sub.Close()

	// Current value is replayed first.
	assert.Equal(t, "false", receive(t, sub).Value)

	// Every set is delivered in order, duplicates included, even when the
	// reader lags behind.
	values := []string{"true", "true", "false", "true"}
	for _, v := range values {
		_, err := s.Set(KeyFreeMode, v, KindBoolean)
		require.NoError(t, err)
	}
	_, err = s.Set(KeyIdleVideoURL, "http://x/other.mp4", KindString)
	require.NoError(t, err)

	for _, want := range values {
		assert.Equal(t, want, receive(t, sub).Value)
	}

	select {
	case e := <-sub.C():
		t.Fatalf("unexpected entry for another key: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_Subscribe_Restartable(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Set(KeyIdleVideoActive, "true", KindBoolean)
	require.NoError(t, err)

	first := s.Subscribe(KeyIdleVideoActive)
	assert.Equal(t, "true", receive(t, first).Value)
	first.Close()

	_, ok := <-first.C()
	assert.False(t, ok, "closed subscription channel must be closed")
	assert.Equal(t, 0, s.SubscriberCount())

	_, err = s.Set(KeyIdleVideoActive, "false", KindBoolean)
	require.NoError(t, err)

	second := s.Subscribe(KeyIdleVideoActive)
	defer second.Close()
	assert.Equal(t, "false", receive(t, second).Value)
}

func TestStore_Entries(t *testing.T) {
	s := NewStore(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Set(KeyIdleVideoURL, "a", KindString)
	require.NoError(t, err)

	var got []string
	for e := range s.Entries(ctx, KeyIdleVideoURL) {
		got = append(got, e.Value)
		if len(got) == 1 {
			_, err := s.Set(KeyIdleVideoURL, "b", KindString)
			require.NoError(t, err)
		}
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, s.SubscriberCount())
}

func TestStore_ConcurrentReadsAndWrites(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			v := "false"
			if i%2 == 0 {
				v = "true"
			}
			_, err := s.Set(KeyFreeMode, v, KindBoolean)
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			if e, ok := s.Get(KeyFreeMode); ok {
				assert.Contains(t, []string{"true", "false"}, e.Value)
			}
		}()
	}
	wg.Wait()

	e, ok := s.Get(KeyFreeMode)
	require.True(t, ok)
	assert.Equal(t, KindBoolean, e.Kind)
}
