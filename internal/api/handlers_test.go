package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eist-radio/streamd/internal/events"
	"github.com/eist-radio/streamd/internal/infra/store"
	"github.com/eist-radio/streamd/internal/player"
)

type fakePlayer struct {
	mu      sync.Mutex
	playing bool
	plays   int
	stops   int
	toggles int
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	p.playing = true
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

func (p *fakePlayer) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggles++
	p.playing = !p.playing
}

func (p *fakePlayer) Status() player.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return player.Status{Playing: p.playing, EngineState: "idle"}
}

type fakeHistory struct {
	transitions []store.Transition
}

func (h *fakeHistory) History(limit int) ([]store.Transition, error) {
	return h.transitions, nil
}

func newTestServer(t *testing.T, p Player, history History) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewRouter(p, events.NewBus(), history))
	t.Cleanup(server.Close)
	return server
}

func decodeStatus(t *testing.T, resp *http.Response) player.Status {
	t.Helper()
	defer resp.Body.Close()
	var status player.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func TestAPI_Status(t *testing.T) {
	p := &fakePlayer{playing: true}
	server := newTestServer(t, p, nil)

	resp, err := http.Get(server.URL + "/api/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	status := decodeStatus(t, resp)
	assert.True(t, status.Playing)
}

func TestAPI_PlayStopToggle(t *testing.T) {
	p := &fakePlayer{}
	server := newTestServer(t, p, nil)

	resp, err := http.Post(server.URL+"/api/play", "", nil)
	require.NoError(t, err)
	assert.True(t, decodeStatus(t, resp).Playing)
	assert.Equal(t, 1, p.plays)

	resp, err = http.Post(server.URL+"/api/stop", "", nil)
	require.NoError(t, err)
	assert.False(t, decodeStatus(t, resp).Playing)
	assert.Equal(t, 1, p.stops)

	resp, err = http.Post(server.URL+"/api/toggle", "", nil)
	require.NoError(t, err)
	assert.True(t, decodeStatus(t, resp).Playing)
	assert.Equal(t, 1, p.toggles)
}

func TestAPI_StatusRejectsPost(t *testing.T) {
	server := newTestServer(t, &fakePlayer{}, nil)

	resp, err := http.Post(server.URL+"/api/status", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPI_History(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{transitions: []store.Transition{{Event: "started", At: at}}}
	server := newTestServer(t, &fakePlayer{}, history)

	resp, err := http.Get(server.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []store.Transition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "started", got[0].Event)
}

func TestAPI_HistoryWithoutStore(t *testing.T) {
	server := newTestServer(t, &fakePlayer{}, nil)

	resp, err := http.Get(server.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []store.Transition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Empty(t, got)
}
