package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifySource struct {
	notes  chan *pq.Notification
	closed bool
}

func newFakeNotifySource() *fakeNotifySource {
	return &fakeNotifySource{notes: make(chan *pq.Notification)}
}

func (f *fakeNotifySource) NotificationChannel() <-chan *pq.Notification { return f.notes }
func (f *fakeNotifySource) Ping() error                                  { return nil }
func (f *fakeNotifySource) Close() error {
	f.closed = true
	return nil
}

func newTestFeed(clock clockwork.Clock, src *fakeNotifySource) *ChangeFeed {
	cfg := DefaultFeedConfig()
	return &ChangeFeed{
		cfg:    cfg,
		clock:  clock,
		listen: func(FeedConfig) (notifySource, error) { return src, nil },
		active: make(map[string]struct{}),
	}
}

func TestParseChangeEvent(t *testing.T) {
	id := uuid.New()

	ev, err := ParseChangeEvent(`{"table":"matches","op":"update","id":"` + id.String() + `"}`)
	require.NoError(t, err)
	assert.Equal(t, TableMatches, ev.Table)
	assert.Equal(t, OpUpdate, ev.Op)
	assert.Equal(t, id, ev.RecordID)

	_, err = ParseChangeEvent(`not json`)
	assert.Error(t, err)

	_, err = ParseChangeEvent(`{"table":"matches","op":"TRUNCATE"}`)
	assert.Error(t, err)

	_, err = ParseChangeEvent(`{"op":"INSERT"}`)
	assert.Error(t, err)
}

func TestChangeFeedDeliversTableEvents(t *testing.T) {
	src := newFakeNotifySource()
	feed := newTestFeed(clockwork.NewFakeClock(), src)

	sub, err := feed.Subscribe(context.Background(), "matches-realtime", TableMatches)
	require.NoError(t, err)

	id := uuid.New()
	src.notes <- &pq.Notification{Extra: `{"table":"teams","op":"INSERT","id":"` + uuid.NewString() + `"}`}
	src.notes <- &pq.Notification{Extra: `{"table":"matches","op":"UPDATE","id":"` + id.String() + `"}`}

	select {
	case ev := <-sub.Events():
		assert.Equal(t, TableMatches, ev.Table)
		assert.Equal(t, id, ev.RecordID)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}

	require.NoError(t, sub.Unsubscribe())
	assert.True(t, src.closed)

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestChangeFeedResyncOnReconnect(t *testing.T) {
	src := newFakeNotifySource()
	feed := newTestFeed(clockwork.NewFakeClock(), src)

	sub, err := feed.Subscribe(context.Background(), "matches-realtime", TableMatches)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	src.notes <- nil

	select {
	case ev := <-sub.Events():
		assert.Equal(t, OpResync, ev.Op)
		assert.Equal(t, TableMatches, ev.Table)
	case <-time.After(time.Second):
		t.Fatal("expected a resync event")
	}
}

func TestChangeFeedRejectsDuplicateChannel(t *testing.T) {
	feed := newTestFeed(clockwork.NewFakeClock(), newFakeNotifySource())

	first, err := feed.Subscribe(context.Background(), "matches-realtime", TableMatches)
	require.NoError(t, err)

	_, err = feed.Subscribe(context.Background(), "matches-realtime", TableMatches)
	assert.ErrorIs(t, err, ErrChannelInUse)

	require.NoError(t, first.Unsubscribe())
	require.NoError(t, first.Unsubscribe())

	again, err := feed.Subscribe(context.Background(), "matches-realtime", TableMatches)
	require.NoError(t, err)
	require.NoError(t, again.Unsubscribe())
}

func TestSubscriptionRateLimitsDelivery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &pqSubscription{
		feed:    &ChangeFeed{clock: clock},
		channel: "matches-realtime",
		table:   TableMatches,
		limiter: NewEventLimiter(clock, 2),
		events:  make(chan ChangeEvent, 10),
	}

	note := &pq.Notification{Extra: `{"table":"matches","op":"UPDATE","id":"` + uuid.NewString() + `"}`}
	for i := 0; i < 5; i++ {
		sub.handle(note)
	}
	assert.Len(t, sub.events, 2)

	clock.Advance(time.Second)
	sub.handle(note)
	assert.Len(t, sub.events, 3)
}

func TestEventLimiter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewEventLimiter(clock, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow())
	}
	assert.False(t, l.Allow())

	clock.Advance(999 * time.Millisecond)
	assert.False(t, l.Allow())

	clock.Advance(time.Millisecond)
	assert.True(t, l.Allow())

	unlimited := NewEventLimiter(clock, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}
}
