package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrChannelInUse is returned when a channel name is already subscribed in this process
var ErrChannelInUse = errors.New("datastore: channel already subscribed")

// Op is the kind of change a notification reports
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync is emitted after the notification connection is re-established;
	// changes may have been missed while it was down.
	OpResync Op = "RESYNC"
)

// ChangeEvent is a single insert/update/delete observed on a table
type ChangeEvent struct {
	Table      Table     `json:"table"`
	Op         Op        `json:"op"`
	RecordID   uuid.UUID `json:"id"`
	ReceivedAt time.Time `json:"-"`
}

// Subscription delivers change events until Unsubscribe is called
type Subscription interface {
	Events() <-chan ChangeEvent
	Unsubscribe() error
}

// ParseChangeEvent decodes a NOTIFY payload produced by the change trigger
func ParseChangeEvent(payload string) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change payload: %w", err)
	}
	if ev.Table == "" {
		return ChangeEvent{}, fmt.Errorf("change payload missing table")
	}
	ev.Op = Op(strings.ToUpper(string(ev.Op)))
	switch ev.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("unknown change op %q", ev.Op)
	}
	return ev, nil
}

type FeedConfig struct {
	DatabaseURL     string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel   string        // Postgres channel the change trigger notifies on
	MinReconnect    time.Duration // pq.Listener reconnect backoff bounds
	MaxReconnect    time.Duration
	PingInterval    time.Duration
	EventsPerSecond int // delivery cap per subscription, 0 disables
	BufferSize      int
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		NotifyChannel:   "scoreboard_changes",
		MinReconnect:    10 * time.Second,
		MaxReconnect:    time.Minute,
		PingInterval:    90 * time.Second,
		EventsPerSecond: 10,
		BufferSize:      16,
	}
}

// notifySource is the part of *pq.Listener the feed reads from
type notifySource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// ChangeFeed hands out Postgres-backed change subscriptions. Each local channel
// name may be held by only one subscription at a time.
type ChangeFeed struct {
	cfg    FeedConfig
	clock  clockwork.Clock
	listen func(cfg FeedConfig) (notifySource, error)

	mu     sync.Mutex
	active map[string]struct{}
}

// NewChangeFeed creates a feed that opens one pq.Listener per subscription
func NewChangeFeed(cfg FeedConfig) *ChangeFeed {
	return &ChangeFeed{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		listen: openListener,
		active: make(map[string]struct{}),
	}
}

func openListener(cfg FeedConfig) (notifySource, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}
	return l, nil
}

// Subscribe starts delivering change events for table under the local name channel
func (f *ChangeFeed) Subscribe(ctx context.Context, channel string, table Table) (Subscription, error) {
	f.mu.Lock()
	if _, taken := f.active[channel]; taken {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChannelInUse, channel)
	}
	f.active[channel] = struct{}{}
	f.mu.Unlock()

	src, err := f.listen(f.cfg)
	if err != nil {
		f.release(channel)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	bufSize := f.cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 1
	}
	sub := &pqSubscription{
		feed:    f,
		channel: channel,
		table:   table,
		src:     src,
		limiter: NewEventLimiter(f.clock, f.cfg.EventsPerSecond),
		events:  make(chan ChangeEvent, bufSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sub.run(runCtx, f.cfg.PingInterval)

	log.Info().
		Str("channel", channel).
		Str("notify_channel", f.cfg.NotifyChannel).
		Str("table", string(table)).
		Msg("subscribed to changes")

	return sub, nil
}

func (f *ChangeFeed) release(channel string) {
	f.mu.Lock()
	delete(f.active, channel)
	f.mu.Unlock()
}

type pqSubscription struct {
	feed    *ChangeFeed
	channel string
	table   Table
	src     notifySource
	limiter *EventLimiter
	events  chan ChangeEvent
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	err     error
}

func (s *pqSubscription) Events() <-chan ChangeEvent {
	return s.events
}

// Unsubscribe stops delivery, closes the listener connection and frees the channel name
func (s *pqSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.err = s.src.Close()
		s.feed.release(s.channel)
		log.Info().Str("channel", s.channel).Msg("unsubscribed from changes")
	})
	return s.err
}

func (s *pqSubscription) run(ctx context.Context, pingInterval time.Duration) {
	defer close(s.done)
	defer close(s.events)

	if pingInterval <= 0 {
		pingInterval = DefaultFeedConfig().PingInterval
	}
	pingTicker := s.feed.clock.NewTicker(pingInterval)
	defer pingTicker.Stop()

	notes := s.src.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case note, ok := <-notes:
			if !ok {
				return
			}
			s.handle(note)
		case <-pingTicker.Chan():
			if err := s.src.Ping(); err != nil {
				log.Error().Err(err).Str("channel", s.channel).Msg("failed to ping listener")
			}
		}
	}
}

func (s *pqSubscription) handle(note *pq.Notification) {
	var ev ChangeEvent
	if note == nil {
		// nil notification means the connection was lost and re-established
		ev = ChangeEvent{Table: s.table, Op: OpResync}
	} else {
		parsed, err := ParseChangeEvent(note.Extra)
		if err != nil {
			log.Warn().Err(err).Str("channel", s.channel).Msg("ignoring malformed notification")
			return
		}
		if parsed.Table != s.table {
			return
		}
		ev = parsed
	}
	ev.ReceivedAt = s.feed.clock.Now()

	if !s.limiter.Allow() {
		log.Debug().Str("channel", s.channel).Str("op", string(ev.Op)).Msg("change event rate limited")
		return
	}

	select {
	case s.events <- ev:
	default:
		log.Debug().Str("channel", s.channel).Msg("subscriber busy, dropping change event")
	}
}
