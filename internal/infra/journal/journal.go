// Package journal persists request transitions and settings behind the
// in-memory core. Writes are queued and applied by a single writer goroutine,
// so recording never blocks a caller holding a lock.
package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/osa030/requestbox/internal/domain/request"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// ErrLocked is returned when another process holds the journal file.
var ErrLocked = errors.New("journal is locked by another process")

// Options configures a journal.
type Options struct {
	Driver     string
	DSN        string
	BufferSize int
}

// Setting is one persisted settings entry.
type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
	Kind  string `db:"kind"`
}

// Transition is one row of a request's audit trail.
type Transition struct {
	Status request.Status
	At     time.Time
}

type opKind int

const (
	opRequest opKind = iota
	opSetting
	opBarrier
)

type op struct {
	kind    opKind
	request request.Request
	setting Setting
	at      time.Time
	done    chan struct{}
}

type requestRow struct {
	ID           string `db:"id"`
	Title        string `db:"title"`
	RequesterRef string `db:"requester_ref"`
	SubmittedAt  string `db:"submitted_at"`
	PaymentState string `db:"payment_state"`
	Status       string `db:"status"`
}

type transitionRow struct {
	Status string `db:"status"`
	At     string `db:"at"`
}

// Journal is a write-behind store. A zero-database journal (driver "none")
// accepts and discards every record.
type Journal struct {
	db     *sqlx.DB
	driver string
	lock   *flock.Flock

	mu      sync.RWMutex
	ops     chan op
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
	now     func() time.Time
}

// Nop returns a journal that records nothing.
func Nop() *Journal {
	return &Journal{driver: DriverNone, now: time.Now}
}

// Open connects to the journal database, applies the schema and starts the writer.
func Open(ctx context.Context, opts Options) (*Journal, error) {
	if opts.Driver == DriverNone || opts.Driver == "" {
		return Nop(), nil
	}
	if opts.Driver != DriverSQLite && opts.Driver != DriverPostgres {
		return nil, errors.Newf("unknown journal driver %q", opts.Driver)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}

	j := &Journal{
		driver: opts.Driver,
		ops:    make(chan op, opts.BufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	if opts.Driver == DriverSQLite && opts.DSN != ":memory:" {
		j.lock = flock.New(opts.DSN + ".lock")
		ok, err := j.lock.TryLock()
		if err != nil {
			return nil, errors.Wrap(err, "acquire journal lock")
		}
		if !ok {
			return nil, errors.Wrapf(ErrLocked, "%s", opts.DSN)
		}
	}

	db, err := sqlx.Open(opts.Driver, opts.DSN)
	if err != nil {
		j.unlock()
		return nil, errors.Wrapf(err, "open %s journal", opts.Driver)
	}

	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				j.unlock()
				return nil, errors.Wrapf(err, "apply pragma %q", pragma)
			}
		}
	}

	if err := applySchema(ctx, db, opts.Driver); err != nil {
		_ = db.Close()
		j.unlock()
		return nil, err
	}

	j.db = db
	go j.writeLoop()

	zlog.Info().Msgf("journal: opened driver=%s buffer=%d", opts.Driver, opts.BufferSize)
	return j, nil
}

// Driver returns the journal driver name.
func (j *Journal) Driver() string {
	return j.driver
}

// Dropped returns how many records were discarded because the buffer was full.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// RecordRequest queues the current state of r and an audit row for its status.
func (j *Journal) RecordRequest(r request.Request) {
	j.enqueue(op{kind: opRequest, request: r, at: j.now()})
}

// RecordSetting queues a settings upsert.
func (j *Journal) RecordSetting(s Setting) {
	j.enqueue(op{kind: opSetting, setting: s, at: j.now()})
}

func (j *Journal) enqueue(o op) {
	if j.db == nil {
		return
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}

	select {
	case j.ops <- o:
	default:
		n := j.dropped.Add(1)
		zlog.Warn().Msgf("journal: buffer full, dropped record: dropped_total=%d", n)
	}
}

// Flush blocks until every record queued before the call has been written.
func (j *Journal) Flush(ctx context.Context) error {
	if j.db == nil {
		return nil
	}

	barrier := op{kind: opBarrier, done: make(chan struct{})}

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.ops <- barrier:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadActive returns every request that was QUEUED or PLAYING when the
// journal was last written.
func (j *Journal) LoadActive(ctx context.Context) ([]request.Request, error) {
	if j.db == nil {
		return nil, nil
	}

	query, args, err := sqlx.In(selectRequests,
		[]string{string(request.StatusQueued), string(request.StatusPlaying)})
	if err != nil {
		return nil, errors.Wrap(err, "build active query")
	}

	var rows []requestRow
	if err := j.db.SelectContext(ctx, &rows, j.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "load active requests")
	}

	result := make([]request.Request, 0, len(rows))
	for _, row := range rows {
		submittedAt, err := time.Parse(time.RFC3339Nano, row.SubmittedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "parse submitted_at of %s", row.ID)
		}
		result = append(result, request.Request{
			ID:           row.ID,
			Title:        row.Title,
			RequesterRef: row.RequesterRef,
			SubmittedAt:  submittedAt,
			PaymentState: request.PaymentState(row.PaymentState),
			Status:       request.Status(row.Status),
		})
	}
	return result, nil
}

// LoadSettings returns every persisted setting ordered by key.
func (j *Journal) LoadSettings(ctx context.Context) ([]Setting, error) {
	if j.db == nil {
		return nil, nil
	}

	var settings []Setting
	if err := j.db.SelectContext(ctx, &settings, selectSettings); err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	return settings, nil
}

// History returns the recorded transitions of a request in commit order.
func (j *Journal) History(ctx context.Context, requestID string) ([]Transition, error) {
	if j.db == nil {
		return nil, nil
	}

	var rows []transitionRow
	if err := j.db.SelectContext(ctx, &rows, j.db.Rebind(selectTransitions), requestID); err != nil {
		return nil, errors.Wrapf(err, "load history of %s", requestID)
	}

	result := make([]Transition, 0, len(rows))
	for _, row := range rows {
		at, err := time.Parse(time.RFC3339Nano, row.At)
		if err != nil {
			return nil, errors.Wrapf(err, "parse transition time of %s", requestID)
		}
		result = append(result, Transition{Status: request.Status(row.Status), At: at})
	}
	return result, nil
}

// Close drains pending records, stops the writer and releases the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ops)
	j.mu.Unlock()

	<-j.done

	err := j.db.Close()
	j.unlock()
	if n := j.Dropped(); n > 0 {
		zlog.Warn().Msgf("journal: closed with dropped records: dropped_total=%d", n)
	}
	return errors.Wrap(err, "close journal")
}

func (j *Journal) unlock() {
	if j.lock == nil {
		return
	}
	if err := j.lock.Unlock(); err != nil {
		zlog.Warn().Msgf("journal: release lock: %v", err)
	}
}

// writeLoop applies queued records until the channel is closed.
func (j *Journal) writeLoop() {
	defer close(j.done)

	for o := range j.ops {
		var err error
		switch o.kind {
		case opRequest:
			err = j.writeRequest(o.request, o.at)
		case opSetting:
			err = j.writeSetting(o.setting, o.at)
		case opBarrier:
			close(o.done)
		}
		if err != nil {
			zlog.Error().Msgf("journal: write failed: %v", err)
		}
	}
}

func (j *Journal) writeRequest(r request.Request, at time.Time) error {
	ctx := context.Background()
	stamp := at.UTC().Format(time.RFC3339Nano)

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(upsertRequest),
		r.ID, r.Title, r.RequesterRef, r.SubmittedAt.UTC().Format(time.RFC3339Nano),
		string(r.PaymentState), string(r.Status), stamp,
	); err != nil {
		return errors.Wrapf(err, "upsert request %s", r.ID)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(insertTransition), r.ID, string(r.Status), stamp); err != nil {
		return errors.Wrapf(err, "insert transition of %s", r.ID)
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (j *Journal) writeSetting(s Setting, at time.Time) error {
	_, err := j.db.ExecContext(context.Background(), j.db.Rebind(upsertSetting),
		s.Key, s.Value, s.Kind, at.UTC().Format(time.RFC3339Nano))
	return errors.Wrapf(err, "upsert setting %s", s.Key)
}
