package overlay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/scoreboard/go/internal/livematch"
	"github.com/mcdev12/scoreboard/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeSource stands in for the synchronizer
type fakeSource struct {
	mu         sync.Mutex
	state      livematch.State
	changes    chan struct{}
	visibility []bool
	gate       chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		state:   livematch.State{Phase: livematch.PhaseReadyOK},
		changes: make(chan struct{}, 1),
	}
}

func (f *fakeSource) Snapshot() livematch.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Changes() <-chan struct{} { return f.changes }

func (f *fakeSource) SetVisible(visible bool) {
	f.mu.Lock()
	f.visibility = append(f.visibility, visible)
	gate := f.gate
	f.mu.Unlock()

	// a real synchronizer fetches on the caller's goroutine when turning visible
	if gate != nil {
		<-gate
	}
}

// holdVisibility makes SetVisible block until the returned func is called
func (f *fakeSource) holdVisibility() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
	return sync.OnceFunc(func() { close(gate) })
}

func (f *fakeSource) setMatch(m *models.MatchView) {
	f.mu.Lock()
	f.state.CurrentMatch = m
	f.mu.Unlock()
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

func (f *fakeSource) visibilityCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.visibility...)
}

type testOverlay struct {
	source *fakeSource
	conns  *ConnectionManager
	server *httptest.Server
}

func newTestOverlay(t *testing.T) *testOverlay {
	t.Helper()
	src := newFakeSource()
	conns := NewConnectionManager(DefaultConnectionConfig())
	hub := NewHub(src, conns, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	mux := http.NewServeMux()
	NewHandler(hub, conns, nil).RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &testOverlay{source: src, conns: conns, server: server}
}

func (o *testOverlay) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(o.server.URL, "http") + "/overlay/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) View {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	var v View
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestViewerReceivesCurrentStateThenUpdates(t *testing.T) {
	o := newTestOverlay(t)
	require.Eventually(t, func() bool {
		o.conns.mu.RLock()
		defer o.conns.mu.RUnlock()
		return o.conns.latest != nil
	}, waitFor, tick)

	conn := o.dial(t)
	assert.Equal(t, ModeEmpty, readView(t, conn).Mode)

	match := &models.MatchView{
		Match: models.Match{ID: uuid.New(), TeamAScore: 3, TeamBScore: 1, Status: models.MatchStatusLive},
		TeamA: &models.DisplayRef{Name: "Falcons"},
		TeamB: &models.DisplayRef{Name: "Wolves"},
	}
	o.source.setMatch(match)

	v := readView(t, conn)
	assert.Equal(t, ModeMatch, v.Mode)
	assert.True(t, v.Live)
	require.NotNil(t, v.Match)
	assert.Equal(t, 3, v.Match.TeamAScore)
	assert.Equal(t, "Falcons", v.Match.TeamA.Name)
}

func TestAllViewersHiddenSuspendsSynchronizer(t *testing.T) {
	o := newTestOverlay(t)

	first := o.dial(t)
	second := o.dial(t)
	require.Eventually(t, func() bool {
		total, _ := o.conns.Stats()
		return total == 2
	}, waitFor, tick)

	hide := func(conn *websocket.Conn, hidden bool) {
		require.NoError(t, conn.WriteJSON(clientMessage{Type: "visibility", Hidden: hidden}))
	}

	hide(first, true)
	require.Eventually(t, func() bool {
		_, visible := o.conns.Stats()
		return visible == 1
	}, waitFor, tick)
	assert.Empty(t, o.source.visibilityCalls(), "one visible viewer keeps the synchronizer running")

	hide(second, true)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false}, o.source.visibilityCalls())
	}, waitFor, tick)

	hide(first, false)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false, true}, o.source.visibilityCalls())
	}, waitFor, tick)
}

func TestLastHiddenViewerLeavingRestoresVisibility(t *testing.T) {
	o := newTestOverlay(t)

	conn := o.dial(t)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "visibility", Hidden: true}))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false}, o.source.visibilityCalls())
	}, waitFor, tick)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false, true}, o.source.visibilityCalls())
	}, waitFor, tick)
}

func TestSlowVisibilityHandlerDoesNotDelayNewViewers(t *testing.T) {
	o := newTestOverlay(t)
	release := o.source.holdVisibility()
	t.Cleanup(release)
	require.Eventually(t, func() bool {
		o.conns.mu.RLock()
		defer o.conns.mu.RUnlock()
		return o.conns.latest != nil
	}, waitFor, tick)

	first := o.dial(t)
	assert.Equal(t, ModeEmpty, readView(t, first).Mode)

	require.NoError(t, first.WriteJSON(clientMessage{Type: "visibility", Hidden: true}))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false}, o.source.visibilityCalls())
	}, waitFor, tick)
	require.NoError(t, first.WriteJSON(clientMessage{Type: "visibility", Hidden: false}))
	require.Eventually(t, func() bool {
		_, visible := o.conns.Stats()
		return visible == 1
	}, waitFor, tick)

	// the handler for the hidden transition is still blocked
	started := time.Now()
	second := o.dial(t)
	assert.Equal(t, ModeEmpty, readView(t, second).Mode)
	assert.Less(t, time.Since(started), time.Second)

	release()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]bool{false, true}, o.source.visibilityCalls())
	}, waitFor, tick)
}

func TestStateEndpoint(t *testing.T) {
	o := newTestOverlay(t)

	resp, err := http.Get(o.server.URL + "/api/overlay/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, ModeEmpty, v.Mode)
}

func TestPageRendersScoreboard(t *testing.T) {
	o := newTestOverlay(t)
	logo := "https://cdn.example.com/falcons.png"
	o.source.setMatch(&models.MatchView{
		Match:      models.Match{ID: uuid.New(), TeamAScore: 2, TeamBScore: 5, Status: models.MatchStatusLive},
		TeamA:      &models.DisplayRef{Name: "Falcons", LogoURL: &logo},
		TeamB:      &models.DisplayRef{Name: "Wolves <b>"},
		Tournament: &models.DisplayRef{Name: "Copa Regional"},
	})

	resp, err := http.Get(o.server.URL + "/overlay")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body strings.Builder
	_, err = io.Copy(&body, resp.Body)
	require.NoError(t, err)

	page := body.String()
	assert.Contains(t, page, "Falcons")
	assert.Contains(t, page, logo)
	assert.Contains(t, page, "Wolves &lt;b&gt;")
	assert.Contains(t, page, `<span class="score">5</span>`)
}
