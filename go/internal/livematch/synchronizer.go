package livematch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/rs/zerolog/log"
)

// FetchErrorMessage is what consumers see when the latest fetch failed
const FetchErrorMessage = "failed to load match data"

var (
	ErrAlreadyStarted = errors.New("livematch: synchronizer already started")
	ErrStopped        = errors.New("livematch: synchronizer stopped")
)

// ChangeFeed delivers change notifications for a table under a channel name
type ChangeFeed interface {
	Subscribe(ctx context.Context, channel string, table datastore.Table) (datastore.Subscription, error)
}

type Config struct {
	PollingInterval  time.Duration // timer period while visible
	MinFetchInterval time.Duration // minimum gap between fetch starts
	FetchTimeout     time.Duration
	EnableRealtime   bool
	Channel          string // change feed channel name, one holder per process
}

func DefaultConfig() Config {
	return Config{
		PollingInterval:  2 * time.Second,
		MinFetchInterval: time.Second,
		FetchTimeout:     10 * time.Second,
		EnableRealtime:   true,
		Channel:          "matches-realtime",
	}
}

type Option func(*Synchronizer)

// WithClock replaces the real clock, typically with a clockwork.FakeClock in tests
func WithClock(clock clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = clock }
}

// WithChangeFeed enables push-triggered fetches
func WithChangeFeed(feed ChangeFeed) Option {
	return func(s *Synchronizer) { s.feed = feed }
}

func WithMetrics(m MetricsCollector) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// Synchronizer keeps a single current match in sync with the backend. Polling
// ticks, change notifications, visibility changes and explicit refetches all
// pass through one gate that allows a single fetch in flight and spaces fetch
// starts at least MinFetchInterval apart; triggers that fail the gate are dropped.
//
// A Synchronizer is single use: Start mounts it, Stop tears it down for good.
type Synchronizer struct {
	source  MatchSource
	feed    ChangeFeed
	clock   clockwork.Clock
	cfg     Config
	metrics MetricsCollector

	mu            sync.Mutex
	state         State
	running       bool
	stopped       bool
	visible       bool
	inFlight      bool
	everFetched   bool
	everCompleted bool
	lastStart     time.Time
	baseCtx       context.Context
	cancel        context.CancelFunc
	pollStop      chan struct{}
	sub           datastore.Subscription

	wg      sync.WaitGroup
	changes chan struct{}
}

// New creates a Synchronizer reading from source
func New(source MatchSource, cfg Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:  source,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		metrics: NoOpMetricsCollector{},
		state:   State{Phase: PhaseUninitialized},
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Changes signals, coalesced, whenever the snapshot changes
func (s *Synchronizer) Changes() <-chan struct{} {
	return s.changes
}

// Start mounts the synchronizer: it subscribes to change notifications,
// performs the initial fetch with loading indication and starts polling.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.visible = true
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.state.Phase = PhaseLoadingInitial
	s.state.IsLoading = true
	runCtx := s.baseCtx
	s.mu.Unlock()
	s.notify()

	if s.feed != nil && s.cfg.EnableRealtime {
		s.subscribe(runCtx)
	}

	s.trigger(TriggerMount)
	s.StartPolling()

	log.Info().
		Dur("polling_interval", s.cfg.PollingInterval).
		Dur("min_fetch_interval", s.cfg.MinFetchInterval).
		Bool("realtime", s.feed != nil && s.cfg.EnableRealtime).
		Msg("live match synchronizer started")
	return nil
}

func (s *Synchronizer) subscribe(ctx context.Context) {
	sub, err := s.feed.Subscribe(ctx, s.cfg.Channel, datastore.TableMatches)
	if err != nil {
		// polling still covers updates, just with more latency
		log.Error().Err(err).Str("channel", s.cfg.Channel).Msg("failed to subscribe to match changes")
		return
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				log.Debug().
					Str("op", string(ev.Op)).
					Str("match_id", ev.RecordID.String()).
					Msg("match change received")
				s.trigger(TriggerPush)
			}
		}
	}()
}

// Stop tears the synchronizer down: the timer and subscription are released
// and any fetch still in flight has its result discarded.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.state.Phase = PhaseStopped
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
	sub := s.sub
	s.sub = nil
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			log.Error().Err(err).Str("channel", s.cfg.Channel).Msg("failed to release match subscription")
		}
	}
	s.wg.Wait()

	log.Info().Msg("live match synchronizer stopped")
}

// Refetch asks for an immediate fetch. It reports whether a fetch ran; the
// request is dropped when one is already in flight or the last one started
// less than MinFetchInterval ago.
func (s *Synchronizer) Refetch() bool {
	return s.trigger(TriggerRefetch)
}

// StartPolling starts the polling timer if it is not already running
func (s *Synchronizer) StartPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.pollStop != nil {
		return
	}

	ticker := s.clock.NewTicker(s.cfg.PollingInterval)
	stop := make(chan struct{})
	s.pollStop = stop

	s.wg.Add(1)
	go s.poll(ticker, stop)
}

// StopPolling stops the polling timer
func (s *Synchronizer) StopPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
}

func (s *Synchronizer) poll(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			s.trigger(TriggerPoll)
		}
	}
}

// SetVisible reports consumer visibility. Hidden suspends polling and push
// triggered fetches; becoming visible fetches once immediately and resumes polling.
func (s *Synchronizer) SetVisible(visible bool) {
	s.mu.Lock()
	if !s.running || s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	s.mu.Unlock()

	if !visible {
		s.StopPolling()
		log.Debug().Msg("consumer hidden, polling suspended")
		return
	}

	log.Debug().Msg("consumer visible, resuming polling")
	s.trigger(TriggerVisible)
	s.StartPolling()
}

// trigger is the single entry point for every fetch request
func (s *Synchronizer) trigger(t Trigger) bool {
	s.mu.Lock()
	outcome := s.admit(t)
	if outcome != OutcomeStarted {
		s.mu.Unlock()
		s.metrics.RecordTrigger(t, outcome)
		log.Debug().Str("trigger", string(t)).Str("outcome", outcome).Msg("fetch dropped")
		return false
	}

	s.inFlight = true
	s.everFetched = true
	s.lastStart = s.clock.Now()
	loadingChanged := false
	if t == TriggerRefetch && !s.everCompleted && !s.state.IsLoading {
		s.state.IsLoading = true
		loadingChanged = true
	}
	ctx := context.WithoutCancel(s.baseCtx)
	s.mu.Unlock()

	s.metrics.RecordTrigger(t, OutcomeStarted)
	if loadingChanged {
		s.notify()
	}
	s.fetch(ctx)
	return true
}

// admit applies the gate. Callers hold s.mu.
func (s *Synchronizer) admit(t Trigger) string {
	if !s.running {
		return OutcomeStopped
	}
	if !s.visible && (t == TriggerPoll || t == TriggerPush) {
		return OutcomeHidden
	}
	if s.inFlight {
		return OutcomeInFlight
	}
	if s.everFetched && s.clock.Since(s.lastStart) < s.cfg.MinFetchInterval {
		return OutcomeThrottled
	}
	return OutcomeStarted
}

func (s *Synchronizer) fetch(ctx context.Context) {
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	match, err := SelectCurrent(ctx, s.source)
	s.metrics.RecordFetch(s.clock.Since(start), err == nil)

	s.mu.Lock()
	s.inFlight = false
	if !s.running {
		s.mu.Unlock()
		log.Debug().Msg("discarding fetch result after teardown")
		return
	}

	changed := s.state.IsLoading
	s.state.IsLoading = false
	s.everCompleted = true

	if err != nil {
		changed = changed || s.state.Error != FetchErrorMessage
		s.state.Error = FetchErrorMessage
		s.state.Phase = PhaseReadyError
		s.mu.Unlock()

		log.Error().Err(err).Msg("failed to fetch current match")
		if changed {
			s.notify()
		}
		return
	}

	changed = changed || s.state.Error != "" || s.state.Phase != PhaseReadyOK
	s.state.Error = ""
	s.state.Phase = PhaseReadyOK

	matchReplaced := matchChanged(s.state.CurrentMatch, match)
	if matchReplaced {
		now := s.clock.Now()
		s.state.CurrentMatch = match
		s.state.LastUpdated = &now
		changed = true
	}
	s.mu.Unlock()

	if matchReplaced {
		s.metrics.RecordMatchChanged()
		ev := log.Info()
		if match != nil {
			ev = ev.Str("match_id", match.ID.String()).
				Str("status", string(match.Status)).
				Int("team_a_score", match.TeamAScore).
				Int("team_b_score", match.TeamBScore)
		}
		ev.Bool("present", match != nil).Msg("current match updated")
	}
	if changed {
		s.notify()
	}
}

func (s *Synchronizer) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
