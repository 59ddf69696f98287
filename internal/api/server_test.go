package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-live/internal/database/models"
	"github.com/bbernstein/lacylights-live/internal/database/repositories"
	"github.com/bbernstein/lacylights-live/internal/fixture"
	"github.com/bbernstein/lacylights-live/internal/services/export"
	"github.com/bbernstein/lacylights-live/internal/services/midi"
	"github.com/bbernstein/lacylights-live/internal/services/network"
	"github.com/bbernstein/lacylights-live/internal/services/pubsub"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

type fakeDMX struct {
	mu        sync.Mutex
	broadcast string
	reloadErr error
}

func (f *fakeDMX) IsEnabled() bool     { return true }
func (f *fakeDMX) IsActive() bool      { return false }
func (f *fakeDMX) GetCurrentRate() int { return 1 }
func (f *fakeDMX) UniverseCount() int  { return 2 }
func (f *fakeDMX) GetBroadcastAddress() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broadcast
}
func (f *fakeDMX) ReloadBroadcastAddress(addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reloadErr != nil {
		return f.reloadErr
	}
	f.broadcast = addr
	return nil
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Upsert(_ context.Context, key, value string) (*models.Setting, error) {
	f.values[key] = value
	return &models.Setting{Key: key, Value: value}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store, http.Handler) {
	t.Helper()
	catalog, err := fixture.NewCatalog("")
	require.NoError(t, err)
	st := store.New(state.Initial())
	srv := NewServer(st, catalog, Config{CORSOrigin: "http://localhost:5173", Version: "test"}, opts...)
	return srv, st, srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	_, _, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestGetState(t *testing.T) {
	_, _, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]json.RawMessage](t, w)
	assert.JSONEq(t, `130`, string(body["bpm"]))
	assert.JSONEq(t, `[]`, string(body["fixtureManager"]))
	assert.Contains(t, body, "midiManager")
}

func TestGetSlice(t *testing.T) {
	_, st, h := newTestServer(t)
	require.NoError(t, st.Dispatch(state.AddScene{Scene: state.Scene{ID: "s1", Name: "Intro"}}))

	w := do(t, h, http.MethodGet, "/api/state/sceneManager", "")
	require.Equal(t, http.StatusOK, w.Code)
	scenes := decode[[]state.Scene](t, w)
	require.Len(t, scenes, 1)
	assert.Equal(t, "Intro", scenes[0].Name)

	w = do(t, h, http.MethodGet, "/api/state/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   int
		wantOK       bool
		wantWarnings int
	}{
		{"valid", `{"type":"ADD_SCENE","scene":{"id":"s1","name":"Intro"}}`, http.StatusOK, true, 0},
		{"diagnostic", `{"type":"REMOVE_SCENE","sceneIndex":7}`, http.StatusOK, false, 1},
		{"unknown type", `{"type":"GET_CHANNEL"}`, http.StatusOK, true, 1},
		{"malformed", `{"type":`, http.StatusBadRequest, false, 0},
		{"missing type", `{"sceneIndex":1}`, http.StatusBadRequest, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, h := newTestServer(t)
			w := do(t, h, http.MethodPost, "/api/actions", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.NotEmpty(t, decode[errorResponse](t, w).Error)
				return
			}
			resp := decode[DispatchResponse](t, w)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Len(t, resp.Warnings, tt.wantWarnings)
		})
	}
}

func TestDispatch_UpdatesStore(t *testing.T) {
	_, st, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/actions", `{"type":"SET_BPM","value":95}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 95, st.GetState().BPM)
}

func TestWarnings(t *testing.T) {
	assert.Nil(t, warnings(nil))
	assert.Equal(t, []string{"a"}, warnings(errors.New("a")))
	assert.Equal(t, []string{"a", "b", "c"}, warnings(errors.Join(errors.New("a"), errors.Join(errors.New("b"), errors.New("c")))))
	assert.Equal(t, []string{"wrap: a"}, warnings(fmt.Errorf("wrap: %w", errors.New("a"))))
}

func TestFixtureTypes(t *testing.T) {
	_, _, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/fixture-types", "")
	require.Equal(t, http.StatusOK, w.Code)
	profiles := decode[[]fixture.Profile](t, w)
	require.NotEmpty(t, profiles)

	var dimmer *fixture.Profile
	for i := range profiles {
		if profiles[i].Type == "Dimmer" {
			dimmer = &profiles[i]
		}
	}
	require.NotNil(t, dimmer)
	assert.Len(t, dimmer.Channels, 1)
}

func TestAddFixtures(t *testing.T) {
	_, st, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/fixtures", `{"type":"Dimmer","name":"Wash","universe":0,"address":10,"amount":3}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decode[[]state.Fixture](t, w)
	require.Len(t, created, 3)
	assert.Equal(t, "Wash 1", created[0].Name)
	assert.Equal(t, 12, created[2].Address)

	fixtures := st.GetState().Fixtures
	require.Len(t, fixtures, 3)
	assert.Equal(t, created[1].ID, fixtures[1].ID)
}

func TestAddFixtures_DefaultName(t *testing.T) {
	_, st, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/fixtures", `{"type":"Dimmer","address":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Dimmer", st.GetState().Fixtures[0].Name)
}

func TestAddFixtures_Errors(t *testing.T) {
	_, st, h := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"type":"NoSuchFixture","address":1}`,
		`{"type":"Dimmer","address":0}`,
		`{"type":"Dimmer","address":512,"amount":2}`,
	} {
		w := do(t, h, http.MethodPost, "/api/fixtures", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, st.GetState().Fixtures)
}

func TestRemoveFixture(t *testing.T) {
	_, st, h := newTestServer(t)
	require.NoError(t, st.Dispatch(state.AddFixture{Fixture: state.Fixture{ID: "f1", Type: "Dimmer"}}))
	require.NoError(t, st.Dispatch(state.AddScene{Scene: state.Scene{ID: "s1", Fixtures: []string{"f1"}}}))

	w := do(t, h, http.MethodDelete, "/api/fixtures/f1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, st.GetState().Fixtures)
	assert.Empty(t, st.GetState().Scenes[0].Fixtures)

	w = do(t, h, http.MethodDelete, "/api/fixtures/f1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportShow(t *testing.T) {
	_, st, h := newTestServer(t)
	require.NoError(t, st.Dispatch(state.AddFixture{Fixture: state.Fixture{ID: "f1", Type: "Dimmer", Name: "Front", Address: 1}}))
	require.NoError(t, st.Dispatch(state.AddScene{Scene: state.Scene{ID: "s1", Name: "Wash", Fixtures: []string{"f1"}}}))

	w := do(t, h, http.MethodGet, "/api/show/export?description=rehearsal", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "show.json")

	exported := decode[export.ExportedShow](t, w)
	assert.Equal(t, export.FormatVersion, exported.Version)
	require.NotNil(t, exported.Metadata)
	assert.Equal(t, "test", exported.Metadata.LacyLightsVersion)
	require.NotNil(t, exported.Metadata.Description)
	assert.Equal(t, "rehearsal", *exported.Metadata.Description)
	assert.Len(t, exported.Fixtures, 1)
	assert.Len(t, exported.Scenes, 1)
}

func TestImportShow(t *testing.T) {
	_, src, srcHandler := newTestServer(t)
	require.NoError(t, src.Dispatch(state.AddFixture{Fixture: state.Fixture{ID: "f1", Type: "Dimmer", Name: "Front", Address: 1}}))
	require.NoError(t, src.Dispatch(state.SetBPM{Value: 150}))
	body := do(t, srcHandler, http.MethodGet, "/api/show/export", "").Body.String()

	_, dst, h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/show/import?mode=REPLACE", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[ImportResponse](t, w)
	assert.Equal(t, 1, resp.Stats.FixturesCreated)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, 150, dst.GetState().BPM)

	// Importing again merges and skips the existing fixture
	w = do(t, h, http.MethodPost, "/api/show/import", body)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[ImportResponse](t, w)
	assert.Equal(t, 1, resp.Stats.Skipped)
	assert.Len(t, resp.Warnings, 1)
}

func TestImportShow_Errors(t *testing.T) {
	_, _, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/show/import?mode=CREATE", `{"version": "1.0"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/show/import", `{"bpm": 120}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// newLimitedServer builds a server whose store rejects actions of kind
// once n of them have been applied.
func newLimitedServer(t *testing.T, kind state.Kind, n int) (*store.Store, http.Handler) {
	t.Helper()
	catalog, err := fixture.NewCatalog("")
	require.NoError(t, err)

	applied := 0
	reducer := func(s state.State, a state.Action) (state.State, error) {
		if a.Kind() == kind {
			if applied >= n {
				return s, errors.New("console is full")
			}
			applied++
		}
		return state.Reduce(s, a)
	}
	st := store.New(state.Initial(), store.WithReducer(reducer))
	return st, NewServer(st, catalog, Config{Version: "test"}).Router()
}

func TestAddFixtures_RollsBackOnFailure(t *testing.T) {
	st, h := newLimitedServer(t, state.KindAddFixture, 2)

	w := do(t, h, http.MethodPost, "/api/fixtures", `{"type":"Dimmer","address":1,"amount":3}`)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Empty(t, st.GetState().Fixtures)
}

func TestImportShow_PartialFailure(t *testing.T) {
	_, src, srcHandler := newTestServer(t)
	require.NoError(t, src.Dispatch(state.AddFixture{Fixture: state.Fixture{ID: "f1", Type: "Dimmer", Address: 1}}))
	require.NoError(t, src.Dispatch(state.AddAnimation{Animation: state.Animation{ID: "a1", Keyframes: state.Keyframes{}}}))
	body := do(t, srcHandler, http.MethodGet, "/api/show/export", "").Body.String()

	dst, h := newLimitedServer(t, state.KindAddAnimation, 0)
	w := do(t, h, http.MethodPost, "/api/show/import", body)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	resp := decode[ImportResponse](t, w)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.FixturesCreated)
	assert.Zero(t, resp.Stats.AnimationsCreated)
	assert.Contains(t, resp.Error, "console is full")
	assert.Len(t, dst.GetState().Fixtures, 1)
}

func TestInterfaces(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.interfaces = func() ([]network.InterfaceOption, error) {
		return []network.InterfaceOption{{Name: "eth0-broadcast", Broadcast: "10.0.0.255", InterfaceType: network.TypeEthernet}}, nil
	}
	h := srv.Router()

	w := do(t, h, http.MethodGet, "/api/network/interfaces", "")
	require.Equal(t, http.StatusOK, w.Code)
	options := decode[[]network.InterfaceOption](t, w)
	require.Len(t, options, 1)
	assert.Equal(t, "10.0.0.255", options[0].Broadcast)

	srv.interfaces = func() ([]network.InterfaceOption, error) { return nil, errors.New("no network") }
	w = do(t, srv.Router(), http.MethodGet, "/api/network/interfaces", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDMXStatus_NotConfigured(t *testing.T) {
	_, _, h := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/dmx", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/dmx/broadcast", `{"address":"10.0.0.255"}`).Code)
}

func TestSetBroadcast(t *testing.T) {
	dmx := &fakeDMX{broadcast: "255.255.255.255"}
	settings := &fakeSettings{values: map[string]string{}}
	_, _, h := newTestServer(t, WithDMX(dmx), WithSettings(settings))

	w := do(t, h, http.MethodGet, "/api/dmx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DMXStatus{Enabled: true, RateHz: 1, Broadcast: "255.255.255.255", Universes: 2}, decode[DMXStatus](t, w))

	w = do(t, h, http.MethodPost, "/api/dmx/broadcast", `{"address":"192.168.1.255"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "192.168.1.255", decode[DMXStatus](t, w).Broadcast)
	assert.Equal(t, "192.168.1.255", settings.values[repositories.SettingArtNetBroadcast])

	for _, body := range []string{`{"address":"nope"}`, `{"address":"::1"}`, `[`} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/dmx/broadcast", body).Code, body)
	}

	dmx.reloadErr = errors.New("dial failed")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/api/dmx/broadcast", `{"address":"10.0.0.255"}`).Code)
}

func TestParseFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?slice=bpm,live&slice=+sceneManager+&slice=", nil)
	assert.Equal(t, []string{"bpm", "live", "sceneManager"}, parseFilters(req, "slice"))
	assert.Nil(t, parseFilters(req, "universe"))
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func TestStateStream(t *testing.T) {
	_, st, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn := dial(t, ts, "/ws?slice=bpm")

	var first struct {
		Action json.RawMessage `json:"action"`
		State  map[string]int  `json:"state"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Empty(t, first.Action)
	assert.Equal(t, map[string]int{"bpm": 130}, first.State)

	// Filtered out
	require.NoError(t, st.Dispatch(state.SetLive{Value: true}))
	require.NoError(t, st.Dispatch(state.SetBPM{Value: 100}))

	var next struct {
		Action map[string]any `json:"action"`
		State  map[string]int `json:"state"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "SET_BPM", next.Action["type"])
	assert.Equal(t, 100, next.State["bpm"])
}

func TestStateStream_ReceivesActions(t *testing.T) {
	_, st, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn := dial(t, ts, "/ws")
	var first StateMessage
	require.NoError(t, conn.ReadJSON(&first))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SET_BPM","value":77}`)))
	require.Eventually(t, func() bool { return st.GetState().BPM == 77 }, time.Second, 10*time.Millisecond)
}

func TestStateStream_UnknownSlice(t *testing.T) {
	_, _, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?slice=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMIDIStream(t *testing.T) {
	_, st, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn := dial(t, ts, "/ws/midi?controller=0")
	ps := st.PubSub()
	require.Eventually(t, func() bool { return ps.SubscriberCount(pubsub.TopicMIDIEvent) == 1 }, time.Second, 10*time.Millisecond)

	ps.Publish(pubsub.TopicMIDIEvent, midi.Event{Type: midi.TypeNote, Number: 9, Value: 1}, "1")
	ps.Publish(pubsub.TopicMIDIEvent, midi.Event{Type: midi.TypeNote, Number: 56, Value: 127}, "0")

	var ev midi.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, midi.Event{Type: midi.TypeNote, Number: 56, Value: 127}, ev)
}

func TestDMXStream_ClosesOnDisconnect(t *testing.T) {
	_, st, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	conn := dial(t, ts, "/ws/dmx")
	ps := st.PubSub()
	require.Eventually(t, func() bool { return ps.SubscriberCount(pubsub.TopicDMXOutput) == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return ps.SubscriberCount(pubsub.TopicDMXOutput) == 0 }, 2*time.Second, 10*time.Millisecond)
}
