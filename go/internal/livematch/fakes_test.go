package livematch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/scoreboard/go/internal/datastore"
	"github.com/mcdev12/scoreboard/go/internal/models"
)

// fakeSource answers the two selection queries from in-memory fixtures and
// records when each fetch started.
type fakeSource struct {
	clock clockwork.Clock

	mu      sync.Mutex
	live    *models.MatchView
	recent  *models.MatchView
	err     error
	starts  []time.Time
	block   chan struct{}
	entered chan struct{}
}

func newFakeSource(clock clockwork.Clock) *fakeSource {
	return &fakeSource{clock: clock}
}

func (f *fakeSource) MaybeSingleMatch(ctx context.Context, q datastore.Query) (*models.MatchView, error) {
	isLive := len(q.Filters) > 0

	f.mu.Lock()
	if isLive {
		f.starts = append(f.starts, f.clock.Now())
	}
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if isLive && block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if isLive {
		if f.live == nil {
			return nil, datastore.ErrNoRows
		}
		m := *f.live
		return &m, nil
	}
	if f.recent == nil {
		return nil, datastore.ErrNoRows
	}
	m := *f.recent
	return &m, nil
}

func (f *fakeSource) setLive(m *models.MatchView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = m
	if m != nil {
		f.recent = m
	}
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// holdFetches makes subsequent fetches wait until the returned release func is called
func (f *fakeSource) holdFetches() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	block := make(chan struct{})
	ent := make(chan struct{}, 8)
	f.block, f.entered = block, ent
	var once sync.Once
	return ent, func() {
		once.Do(func() {
			f.mu.Lock()
			f.block, f.entered = nil, nil
			f.mu.Unlock()
			close(block)
		})
	}
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func (f *fakeSource) fetchStarts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

type fakeFeed struct {
	mu           sync.Mutex
	events       chan datastore.ChangeEvent
	channel      string
	subscribed   int
	unsubscribed int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan datastore.ChangeEvent, 8)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, channel string, table datastore.Table) (datastore.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	f.subscribed++
	return &fakeSubscription{feed: f}, nil
}

func (f *fakeFeed) push(id uuid.UUID) {
	f.events <- datastore.ChangeEvent{Table: datastore.TableMatches, Op: datastore.OpUpdate, RecordID: id}
}

func (f *fakeFeed) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeSubscription struct {
	feed *fakeFeed
}

func (s *fakeSubscription) Events() <-chan datastore.ChangeEvent { return s.feed.events }

func (s *fakeSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.unsubscribed++
	return nil
}

func liveMatch(scoreA, scoreB int, updatedAt time.Time) *models.MatchView {
	return &models.MatchView{
		Match: models.Match{
			ID:         uuid.MustParse("6f1c1c3e-2b7a-4b1e-9a52-0d3c1f6f8a01"),
			TeamAScore: scoreA,
			TeamBScore: scoreB,
			Status:     models.MatchStatusLive,
			UpdatedAt:  updatedAt,
		},
		TeamA: &models.DisplayRef{Name: "Falcons"},
		TeamB: &models.DisplayRef{Name: "Wolves"},
	}
}
