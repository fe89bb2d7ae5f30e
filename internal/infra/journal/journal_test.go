package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/requestbox/internal/domain/request"
)

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: path, BufferSize: 64})
	require.NoError(t, err)
	return j, path
}

func transition(t *testing.T, r *request.Request, next request.Status) request.Request {
	t.Helper()
	require.NoError(t, r.Transition(next))
	return *r
}

func TestJournal_RecordAndLoadActive(t *testing.T) {
	j, path := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 15, 21, 0, 0, 0, time.UTC)

	played := request.New("Played", "tok1", request.PaymentConfirmed, base)
	playing := request.New("Playing", "tok2", request.PaymentNotRequired, base.Add(time.Second))
	queued := request.New("Queued", "tok3", request.PaymentConfirmed, base.Add(2*time.Second))
	rejected := request.New("Rejected", "tok4", request.PaymentDenied, base.Add(3*time.Second))
	cancelled := request.New("Cancelled", "tok5", request.PaymentConfirmed, base.Add(4*time.Second))

	j.RecordRequest(transition(t, played, request.StatusQueued))
	j.RecordRequest(transition(t, played, request.StatusPlaying))
	j.RecordRequest(transition(t, played, request.StatusPlayed))
	j.RecordRequest(transition(t, playing, request.StatusQueued))
	j.RecordRequest(transition(t, playing, request.StatusPlaying))
	j.RecordRequest(transition(t, queued, request.StatusQueued))
	j.RecordRequest(transition(t, rejected, request.StatusRejected))
	j.RecordRequest(transition(t, cancelled, request.StatusQueued))
	j.RecordRequest(transition(t, cancelled, request.StatusCancelled))
	require.NoError(t, j.Flush(ctx))

	active, err := j.LoadActive(ctx)
	require.NoError(t, err)
	byID := make(map[string]request.Request, len(active))
	for _, r := range active {
		byID[r.ID] = r
	}
	require.Len(t, byID, 2)
	assert.Equal(t, request.StatusPlaying, byID[playing.ID].Status)
	assert.Equal(t, request.StatusQueued, byID[queued.ID].Status)
	assert.Equal(t, "Queued", byID[queued.ID].Title)
	assert.Equal(t, "tok3", byID[queued.ID].RequesterRef)
	assert.Equal(t, request.PaymentConfirmed, byID[queued.ID].PaymentState)
	assert.True(t, queued.SubmittedAt.Equal(byID[queued.ID].SubmittedAt))

	history, err := j.History(ctx, played.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, request.StatusQueued, history[0].Status)
	assert.Equal(t, request.StatusPlaying, history[1].Status)
	assert.Equal(t, request.StatusPlayed, history[2].Status)

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	// Reopen: the working set survives the restart.
	reopened, err := Open(ctx, Options{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer reopened.Close()

	active, err = reopened.LoadActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	assert.Equal(t, uint64(0), reopened.Dropped())
}

func TestJournal_Settings(t *testing.T) {
	j, _ := openTemp(t)
	defer j.Close()
	ctx := context.Background()

	j.RecordSetting(Setting{Key: "free_mode", Value: "false", Kind: "boolean"})
	j.RecordSetting(Setting{Key: "idle_video_url", Value: "http://x/idle.mp4", Kind: "string"})
	j.RecordSetting(Setting{Key: "free_mode", Value: "true", Kind: "boolean"})
	require.NoError(t, j.Flush(ctx))

	settings, err := j.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Setting{
		{Key: "free_mode", Value: "true", Kind: "boolean"},
		{Key: "idle_video_url", Value: "http://x/idle.mp4", Kind: "string"},
	}, settings)
}

func TestJournal_ExclusiveLock(t *testing.T) {
	j, path := openTemp(t)

	_, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, j.Close())

	again, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}

func TestJournal_RecordAfterClose(t *testing.T) {
	j, _ := openTemp(t)
	require.NoError(t, j.Close())

	assert.NotPanics(t, func() {
		j.RecordRequest(*request.New("Late", "tok", request.PaymentConfirmed, time.Now()))
		j.RecordSetting(Setting{Key: "free_mode", Value: "true", Kind: "boolean"})
	})
	assert.NoError(t, j.Flush(context.Background()))
}

func TestJournal_Nop(t *testing.T) {
	for _, driver := range []string{DriverNone, ""} {
		j, err := Open(context.Background(), Options{Driver: driver})
		require.NoError(t, err)
		assert.Equal(t, DriverNone, j.Driver())

		j.RecordRequest(*request.New("Song", "tok", request.PaymentConfirmed, time.Now()))
		j.RecordSetting(Setting{Key: "free_mode", Value: "true", Kind: "boolean"})
		require.NoError(t, j.Flush(context.Background()))

		active, err := j.LoadActive(context.Background())
		require.NoError(t, err)
		assert.Empty(t, active)
		settings, err := j.LoadSettings(context.Background())
		require.NoError(t, err)
		assert.Empty(t, settings)
		assert.NoError(t, j.Close())
	}
}

func TestJournal_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
