// Package venue wires settings, admission, the request queue and playback
// into the single service the RPC layer talks to.
package venue

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/app/admission"
	"github.com/osa030/requestbox/internal/app/filter"
	"github.com/osa030/requestbox/internal/app/notification"
	"github.com/osa030/requestbox/internal/app/playback"
	"github.com/osa030/requestbox/internal/app/queue"
	"github.com/osa030/requestbox/internal/app/settings"
	"github.com/osa030/requestbox/internal/domain/request"
	"github.com/osa030/requestbox/internal/infra/config"
	"github.com/osa030/requestbox/internal/infra/journal"
)

var (
	ErrNotStarted     = errors.New("venue is not started")
	ErrAlreadyStarted = errors.New("venue is already started")
	ErrUnknownFilter  = errors.New("unknown filter")
	ErrNothingPlaying = errors.Mark(errors.New("nothing is playing"), queue.ErrConcurrencyViolation)
)

// Journal is the persistence boundary.
type Journal interface {
	RecordRequest(r request.Request)
	RecordSetting(s journal.Setting)
	LoadActive(ctx context.Context) ([]request.Request, error)
	LoadSettings(ctx context.Context) ([]journal.Setting, error)
}

// settingsRecorder adapts the journal to settings.Recorder.
type settingsRecorder struct {
	journal Journal
}

func (r settingsRecorder) RecordSetting(e settings.Entry) {
	r.journal.RecordSetting(journal.Setting{Key: e.Key, Value: e.Value, Kind: string(e.Kind)})
}

// QueueView is a consistent view of the working set.
type QueueView struct {
	Current *request.Request
	Queued  []request.Request
}

// Status represents the current venue status.
type Status struct {
	State       playback.State
	Display     playback.Display
	Current     *request.Request
	QueueSize   int
	Played      uint64
	Skipped     uint64
	Subscribers int
	StartedAt   time.Time
}

// Service is the venue facade.
type Service struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	settings     *settings.Store
	queue        *queue.Queue
	filterChain  *filter.Chain
	admission    *admission.Controller
	coordinator  *playback.Coordinator
	notification *notification.Manager
	journal      Journal

	// Counters
	played  atomic.Uint64
	skipped atomic.Uint64

	started   bool
	startedAt time.Time

	// Channels
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService creates a new venue service. j may be nil.
func NewService(cfg *config.Config, j Journal, opts ...Option) (*Service, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if j == nil {
		j = journal.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		config:       cfg,
		settings:     settings.NewStore(settingsRecorder{journal: j}),
		queue:        queue.New(j),
		filterChain:  filter.NewChain(),
		notification: notification.NewManager(),
		journal:      j,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	s.coordinator = playback.NewCoordinator(s.queue, s.settings, s.notification)
	s.admission = admission.NewController(s.filterChain, s.queue,
		admission.WithRecorder(j),
		admission.WithClock(o.now),
	)

	if err := s.setupFilters(); err != nil {
		cancel()
		return nil, err
	}

	s.queue.SetObserver(s.coordinator.NotifyQueueChanged)
	s.settings.OnChange(s.coordinator.OnSettingChanged)

	return s, nil
}

// setupFilters initializes the filter chain. The acceptance and payment
// gates always run first; configured filters follow in name order.
func (s *Service) setupFilters() error {
	s.filterChain.Add(filter.NewAcceptanceFilter(s.isAccepting))
	s.filterChain.Add(filter.NewPaymentFilter(func() bool {
		return s.settings.Bool(settings.KeyFreeMode)
	}))

	names := make([]string, 0, len(s.config.Filters))
	for name := range s.config.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	registered := filter.GetRegistered()
	for _, name := range names {
		if !s.config.IsFilterEnabled(name) {
			continue
		}
		factory, ok := registered[name]
		if !ok {
			return errors.Wrapf(ErrUnknownFilter, "%s", name)
		}
		f := factory(s.queue)
		if err := f.ValidateConfig(s.config.GetFilterSettings(name)); err != nil {
			return errors.Wrapf(err, "configure %s", name)
		}
		s.filterChain.Add(f)
		zlog.Info().Msgf("venue: filter enabled: name=%s", name)
	}
	return nil
}

// isAccepting reports whether submissions are open. A missing flag means open.
func (s *Service) isAccepting() bool {
	e, ok := s.settings.Get(settings.KeyAcceptingRequests)
	if !ok {
		return true
	}
	v, _ := e.Bool()
	return v
}

// Start seeds settings, restores the working set from the journal and
// begins playback.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	if err := s.seedSettings(ctx); err != nil {
		return err
	}

	restored, err := s.journal.LoadActive(ctx)
	if err != nil {
		return errors.Wrap(err, "load active requests")
	}
	if err := s.queue.Restore(restored); err != nil {
		return errors.Wrap(err, "restore queue")
	}
	if len(restored) > 0 {
		zlog.Info().Msgf("venue: restored requests: count=%d", len(restored))
	}

	s.started = true
	s.startedAt = time.Now()

	go s.eventLoop()

	// Starts playback if something is queued and publishes the first display.
	s.coordinator.NotifyQueueChanged()

	d := s.coordinator.CurrentDisplay()
	zlog.Info().Msgf("venue: started: state=%s display=%s queue_size=%d", s.coordinator.State(), d.Mode, s.queue.Len())
	return nil
}

// seedSettings applies the configured settings, overridden by any value
// persisted in the journal.
func (s *Service) seedSettings(ctx context.Context) error {
	merged := make(map[string]journal.Setting, len(s.config.Settings))
	for _, c := range s.config.Settings {
		merged[c.Key] = journal.Setting{Key: c.Key, Value: c.Value, Kind: c.Kind}
	}

	persisted, err := s.journal.LoadSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	for _, p := range persisted {
		merged[p.Key] = p
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		e := merged[k]
		kind, err := settings.ParseKind(e.Kind)
		if err != nil {
			return errors.Wrapf(err, "seed %s", k)
		}
		if _, err := s.settings.Set(k, e.Value, kind); err != nil {
			return errors.Wrap(err, "seed settings")
		}
	}
	return nil
}

func (s *Service) checkStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SubmitRequest submits a song request. A business-rule rejection returns
// *admission.RejectedError.
func (s *Service) SubmitRequest(ctx context.Context, title, requesterRef string, payment request.PaymentState) (*request.Request, error) {
	if err := s.checkStarted(); err != nil {
		return nil, err
	}
	return s.admission.Submit(ctx, title, requesterRef, payment)
}

// ReportFinished handles the playback device's completion report.
func (s *Service) ReportFinished(ctx context.Context, requestID string) error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	return s.coordinator.OnSongFinished(requestID)
}

// CancelRequest removes a queued request.
func (s *Service) CancelRequest(ctx context.Context, requestID string) (request.Request, error) {
	if err := s.checkStarted(); err != nil {
		return request.Request{}, err
	}
	r, err := s.queue.Cancel(requestID)
	if err != nil {
		return request.Request{}, err
	}
	zlog.Info().Msgf("venue: request cancelled: request_id=%s title=%s", r.ID, r.Title)
	return r, nil
}

// SkipCurrent force-finishes the playing request. An empty requestID skips
// whatever is playing.
func (s *Service) SkipCurrent(ctx context.Context, requestID string) error {
	if err := s.checkStarted(); err != nil {
		return err
	}
	if strings.TrimSpace(requestID) == "" {
		cur, ok := s.queue.Current()
		if !ok {
			return ErrNothingPlaying
		}
		requestID = cur.ID
	}
	return s.coordinator.Skip(requestID)
}

// ListQueue returns the playing request and the queued ones in playback order.
func (s *Service) ListQueue() QueueView {
	active := s.queue.Active()

	var view QueueView
	if len(active) > 0 && active[0].Status == request.StatusPlaying {
		cur := active[0]
		view.Current = &cur
		active = active[1:]
	}
	view.Queued = active
	return view
}

// CurrentDisplay returns what the display should show right now.
func (s *Service) CurrentDisplay() playback.Display {
	return s.coordinator.CurrentDisplay()
}

// WatchDisplay subscribes to display changes. The current display is
// delivered first.
func (s *Service) WatchDisplay() *notification.Subscription {
	return s.notification.Subscribe()
}

// GetSetting returns a setting. ok is false for an unknown key.
func (s *Service) GetSetting(key string) (settings.Entry, bool) {
	return s.settings.Get(key)
}

// SetSetting upserts a setting.
func (s *Service) SetSetting(key, value string, kind settings.Kind) (settings.Entry, error) {
	return s.settings.Set(key, value, kind)
}

// ListSettings returns all settings sorted by key.
func (s *Service) ListSettings() []settings.Entry {
	return s.settings.List()
}

// Filters returns the active filter chain.
func (s *Service) Filters() []filter.Filter {
	return s.filterChain.Filters()
}

// Status returns the current venue status.
func (s *Service) Status() Status {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	st := Status{
		State:       s.coordinator.State(),
		Display:     s.coordinator.CurrentDisplay(),
		QueueSize:   s.queue.Len(),
		Played:      s.played.Load(),
		Skipped:     s.skipped.Load(),
		Subscribers: s.notification.SubscriberCount(),
		StartedAt:   startedAt,
	}
	if cur, ok := s.queue.Current(); ok {
		st.Current = &cur
	}
	return st
}

// Done returns a channel that is closed when the service is closed.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Close stops the service. The journal is owned by the caller.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	s.cancel()
	s.coordinator.Close()
	s.notification.Close()
	s.settings.Close()
	close(s.done)
}

// eventLoop handles playback events.
func (s *Service) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("venue: event loop panicked: %v", r)
			zlog.Info().Msg("venue: restarting event loop")
			go s.eventLoop()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.coordinator.Events():
			if !ok {
				return
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent handles playback events.
func (s *Service) handleEvent(event playback.Event) {
	switch event.Type {
	case playback.EventSongFinished:
		s.played.Add(1)
	case playback.EventSongSkipped:
		s.played.Add(1)
		s.skipped.Add(1)
	}

	if event.Request != nil {
		zlog.Debug().Msgf("venue: playback event: type=%s request_id=%s state=%s display=%s",
			event.Type, event.Request.ID, event.State, event.Display.Mode)
		return
	}
	zlog.Debug().Msgf("venue: playback event: type=%s state=%s display=%s", event.Type, event.State, event.Display.Mode)
}
