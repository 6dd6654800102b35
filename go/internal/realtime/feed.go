package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type FeedConfig struct {
	JetStream       JetStreamConfig
	EventsPerSecond int // delivery cap per subscription, 0 disables
	BufferSize      int
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		JetStream:       DefaultJetStreamConfig(),
		EventsPerSecond: 10,
		BufferSize:      16,
	}
}

// consumeFunc starts delivering raw message bodies for subject to handle and
// returns a func that stops delivery.
type consumeFunc func(ctx context.Context, subject string, handle func(data []byte)) (stop func(), err error)

// Feed hands out change subscriptions backed by the JetStream change stream.
// Like the Postgres feed, each local channel name has at most one holder.
type Feed struct {
	cfg     FeedConfig
	clock   clockwork.Clock
	consume consumeFunc

	mu     sync.Mutex
	active map[string]struct{}
}

// NewFeed creates a feed reading new messages through ordered consumers on js
func NewFeed(js jetstream.JetStream, cfg FeedConfig) *Feed {
	return &Feed{
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		consume: orderedConsumer(js, cfg.JetStream.StreamName),
		active:  make(map[string]struct{}),
	}
}

func orderedConsumer(js jetstream.JetStream, stream string) consumeFunc {
	return func(ctx context.Context, subject string, handle func(data []byte)) (func(), error) {
		consumer, err := js.OrderedConsumer(ctx, stream, jetstream.OrderedConsumerConfig{
			FilterSubjects: []string{subject},
			DeliverPolicy:  jetstream.DeliverNewPolicy,
		})
		if err != nil {
			return nil, fmt.Errorf("create ordered consumer: %w", err)
		}
		cc, err := consumer.Consume(func(msg jetstream.Msg) {
			handle(msg.Data())
		})
		if err != nil {
			return nil, fmt.Errorf("start consumer: %w", err)
		}
		return cc.Stop, nil
	}
}

func (f *Feed) Subscribe(ctx context.Context, channel string, table datastore.Table) (datastore.Subscription, error) {
	f.mu.Lock()
	if _, taken := f.active[channel]; taken {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", datastore.ErrChannelInUse, channel)
	}
	f.active[channel] = struct{}{}
	f.mu.Unlock()

	bufSize := f.cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 1
	}
	sub := &natsSubscription{
		feed:    f,
		channel: channel,
		table:   table,
		limiter: datastore.NewEventLimiter(f.clock, f.cfg.EventsPerSecond),
		events:  make(chan datastore.ChangeEvent, bufSize),
		done:    make(chan struct{}),
	}

	subject := f.cfg.JetStream.Subject(table)
	stop, err := f.consume(ctx, subject, sub.handle)
	if err != nil {
		f.release(channel)
		return nil, err
	}
	sub.stop = stop

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	log.Info().
		Str("channel", channel).
		Str("subject", subject).
		Msg("subscribed to changes")
	return sub, nil
}

func (f *Feed) release(channel string) {
	f.mu.Lock()
	delete(f.active, channel)
	f.mu.Unlock()
}

type natsSubscription struct {
	feed    *Feed
	channel string
	table   datastore.Table
	limiter *datastore.EventLimiter
	stop    func()

	mu     sync.Mutex
	closed bool
	events chan datastore.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *natsSubscription) Events() <-chan datastore.ChangeEvent {
	return s.events
}

func (s *natsSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.stop()

		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()

		close(s.done)
		s.feed.release(s.channel)
		log.Info().Str("channel", s.channel).Msg("unsubscribed from changes")
	})
	return nil
}

func (s *natsSubscription) handle(data []byte) {
	ev, err := decodeChange(data)
	if err != nil {
		log.Warn().Err(err).Str("channel", s.channel).Msg("ignoring malformed change message")
		return
	}
	if ev.Table != s.table {
		return
	}
	ev.ReceivedAt = s.feed.clock.Now()

	if !s.limiter.Allow() {
		log.Debug().Str("channel", s.channel).Str("op", string(ev.Op)).Msg("change event rate limited")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Debug().Str("channel", s.channel).Msg("subscriber busy, dropping change event")
	}
}
