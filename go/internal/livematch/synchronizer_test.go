package livematch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FetchTimeout = 0
	return cfg
}

func newTestSynchronizer(t *testing.T, cfg Config, opts ...Option) (*Synchronizer, *fakeSource, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	src := newFakeSource(clock)
	s := New(src, cfg, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(s.Stop)
	return s, src, clock
}

func drain(ch <-chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func TestMountWithNoMatches(t *testing.T) {
	s, src, _ := newTestSynchronizer(t, testConfig())
	assert.Equal(t, PhaseUninitialized, s.Snapshot().Phase)

	entered, release := src.holdFetches()
	done := make(chan error)
	go func() { done <- s.Start(context.Background()) }()

	<-entered
	during := s.Snapshot()
	assert.True(t, during.IsLoading)
	assert.Equal(t, PhaseLoadingInitial, during.Phase)

	release()
	require.NoError(t, <-done)

	after := s.Snapshot()
	assert.False(t, after.IsLoading)
	assert.Nil(t, after.CurrentMatch)
	assert.Empty(t, after.Error)
	assert.Nil(t, after.LastUpdated)
	assert.Equal(t, PhaseReadyOK, after.Phase)
}

func TestIsLoadingOnlyDuringFirstFetch(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)
	require.NoError(t, s.Start(context.Background()))
	require.False(t, s.Snapshot().IsLoading)

	clock.Advance(2 * time.Second)
	entered, release := src.holdFetches()
	done := make(chan bool)
	go func() { done <- s.Refetch() }()

	<-entered
	assert.False(t, s.Snapshot().IsLoading, "background fetches must not flip loading")
	release()
	assert.True(t, <-done)
	assert.False(t, s.Snapshot().IsLoading)
}

func TestInitialFetchFailureStillEndsLoading(t *testing.T) {
	s, src, _ := newTestSynchronizer(t, testConfig())
	src.setErr(errors.New("network down"))

	require.NoError(t, s.Start(context.Background()))

	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.Equal(t, FetchErrorMessage, st.Error)
	assert.Equal(t, PhaseReadyError, st.Phase)
	assert.Nil(t, st.CurrentMatch)
}

func TestThrottleDropsEarlyTriggers(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, src.fetchCount())

	assert.False(t, s.Refetch())
	clock.Advance(999 * time.Millisecond)
	assert.False(t, s.Refetch())
	assert.Equal(t, 1, src.fetchCount())

	clock.Advance(time.Millisecond)
	assert.True(t, s.Refetch())
	assert.Equal(t, 2, src.fetchCount())
}

func TestFetchStartsAreNeverCloserThanMinInterval(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)
	require.NoError(t, s.Start(context.Background()))

	steps := []time.Duration{100, 300, 700, 50, 950, 1000, 10, 400, 1200, 999, 1, 600}
	for _, step := range steps {
		clock.Advance(step * time.Millisecond)
		for i := 0; i < 5; i++ {
			s.Refetch()
		}
	}

	starts := src.fetchStarts()
	require.Greater(t, len(starts), 1)
	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), time.Second)
	}
}

func TestSingleFlightDropsConcurrentTrigger(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)
	require.NoError(t, s.Start(context.Background()))

	clock.Advance(2 * time.Second)
	entered, release := src.holdFetches()
	done := make(chan bool)
	go func() { done <- s.Refetch() }()
	<-entered

	// well past the throttle window, only the in-flight guard applies
	clock.Advance(5 * time.Second)
	assert.False(t, s.Refetch())

	release()
	assert.True(t, <-done)
	assert.Equal(t, 2, src.fetchCount())
}

func TestSingleFlightDropsPushDuringFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	feed := newFakeFeed()

	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg, WithChangeFeed(feed), WithMetrics(metrics))
	src.setLive(liveMatch(1, 0, clock.Now()))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, src.fetchCount())

	clock.Advance(2 * time.Second)
	entered, release := src.holdFetches()
	done := make(chan bool)
	go func() { done <- s.Refetch() }()
	<-entered

	clock.Advance(5 * time.Second)
	feed.push(liveMatch(1, 0, clock.Now()).ID)

	inFlight := metrics.triggers.WithLabelValues(string(TriggerPush), OutcomeInFlight)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(inFlight) == 1
	}, waitFor, tick)
	assert.Equal(t, 2, src.fetchCount())

	release()
	assert.True(t, <-done)
	assert.Equal(t, 2, src.fetchCount())
	assert.Zero(t, testutil.ToFloat64(metrics.triggers.WithLabelValues(string(TriggerPush), OutcomeStarted)))
}

func TestUnchangedDataDoesNotBumpLastUpdated(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)

	updated := clock.Now().Add(-time.Minute)
	src.setLive(liveMatch(1, 0, updated))
	require.NoError(t, s.Start(context.Background()))

	first := s.Snapshot()
	require.NotNil(t, first.CurrentMatch)
	require.NotNil(t, first.LastUpdated)
	drain(s.Changes())

	clock.Advance(3 * time.Second)
	require.True(t, s.Refetch())

	second := s.Snapshot()
	assert.Equal(t, *first.LastUpdated, *second.LastUpdated)
	select {
	case <-s.Changes():
		t.Fatal("unchanged fetch must not signal a change")
	default:
	}
}

func TestPushNotificationUpdatesScore(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	feed := newFakeFeed()
	s, src, clock := newTestSynchronizer(t, cfg, WithChangeFeed(feed))

	updated := clock.Now()
	src.setLive(liveMatch(2, 1, updated))
	require.NoError(t, s.Start(context.Background()))

	before := s.Snapshot()
	require.NotNil(t, before.CurrentMatch)
	assert.Equal(t, 2, before.CurrentMatch.TeamAScore)
	assert.Equal(t, "matches-realtime", feed.channel)

	clock.Advance(1500 * time.Millisecond)
	src.setLive(liveMatch(3, 1, updated.Add(time.Second)))
	feed.push(before.CurrentMatch.ID)

	require.Eventually(t, func() bool {
		st := s.Snapshot()
		return st.CurrentMatch != nil && st.CurrentMatch.TeamAScore == 3
	}, waitFor, tick)

	after := s.Snapshot()
	assert.True(t, after.LastUpdated.After(*before.LastUpdated))
	assert.Equal(t, 1, after.CurrentMatch.TeamBScore)
}

func TestFetchErrorKeepsCachedMatch(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, clock := newTestSynchronizer(t, cfg)

	src.setLive(liveMatch(4, 4, clock.Now()))
	require.NoError(t, s.Start(context.Background()))
	cached := s.Snapshot()

	src.setErr(errors.New("dial tcp: i/o timeout"))
	clock.Advance(2 * time.Second)
	require.True(t, s.Refetch())

	failed := s.Snapshot()
	assert.Equal(t, FetchErrorMessage, failed.Error)
	assert.Equal(t, PhaseReadyError, failed.Phase)
	require.NotNil(t, failed.CurrentMatch)
	assert.Equal(t, cached.CurrentMatch.ID, failed.CurrentMatch.ID)
	assert.Equal(t, *cached.LastUpdated, *failed.LastUpdated)

	src.setErr(nil)
	clock.Advance(2 * time.Second)
	require.True(t, s.Refetch())

	recovered := s.Snapshot()
	assert.Empty(t, recovered.Error)
	assert.Equal(t, PhaseReadyOK, recovered.Phase)
}

func TestPollingFetchesOnEachTick(t *testing.T) {
	s, src, clock := newTestSynchronizer(t, testConfig())
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, src.fetchCount())

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return src.fetchCount() == 2 }, waitFor, tick)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return src.fetchCount() == 3 }, waitFor, tick)
}

func TestHiddenConsumerSuspendsFetching(t *testing.T) {
	feed := newFakeFeed()
	s, src, clock := newTestSynchronizer(t, testConfig(), WithChangeFeed(feed))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, src.fetchCount())

	s.SetVisible(false)
	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Second)
	}
	feed.push(liveMatch(0, 0, clock.Now()).ID)
	assert.Never(t, func() bool { return src.fetchCount() != 1 }, 100*time.Millisecond, tick)

	s.SetVisible(true)
	assert.Equal(t, 2, src.fetchCount(), "becoming visible fetches exactly once, immediately")

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return src.fetchCount() == 3 }, waitFor, tick)
}

func TestStopPollingAndStartPolling(t *testing.T) {
	s, src, clock := newTestSynchronizer(t, testConfig())
	require.NoError(t, s.Start(context.Background()))

	s.StopPolling()
	s.StopPolling()
	clock.Advance(10 * time.Second)
	assert.Never(t, func() bool { return src.fetchCount() != 1 }, 100*time.Millisecond, tick)

	s.StartPolling()
	s.StartPolling()
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return src.fetchCount() == 2 }, waitFor, tick)
}

func TestStopReleasesResourcesAndDiscardsLateResults(t *testing.T) {
	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	feed := newFakeFeed()
	s, src, clock := newTestSynchronizer(t, cfg, WithChangeFeed(feed))
	require.NoError(t, s.Start(context.Background()))
	require.Nil(t, s.Snapshot().CurrentMatch)

	clock.Advance(2 * time.Second)
	src.setLive(liveMatch(1, 1, clock.Now()))
	entered, release := src.holdFetches()
	done := make(chan bool)
	go func() { done <- s.Refetch() }()
	<-entered

	s.Stop()
	assert.Equal(t, 1, feed.unsubscribeCount())

	release()
	assert.True(t, <-done)

	st := s.Snapshot()
	assert.Nil(t, st.CurrentMatch, "result arriving after teardown is discarded")
	assert.Equal(t, PhaseStopped, st.Phase)

	clock.Advance(5 * time.Second)
	assert.False(t, s.Refetch())
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)

	s.Stop()
	assert.Equal(t, 1, feed.unsubscribeCount())
}

func TestStartTwice(t *testing.T) {
	s, _, _ := newTestSynchronizer(t, testConfig())
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestPrometheusMetricsRecordGateOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)

	cfg := testConfig()
	cfg.PollingInterval = time.Hour
	s, src, _ := newTestSynchronizer(t, cfg, WithMetrics(metrics))
	src.setLive(liveMatch(0, 0, time.Now()))
	require.NoError(t, s.Start(context.Background()))

	s.Refetch()
	s.Refetch()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.triggers.WithLabelValues(string(TriggerMount), OutcomeStarted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.triggers.WithLabelValues(string(TriggerRefetch), OutcomeThrottled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fetches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.matchChanges))
}
