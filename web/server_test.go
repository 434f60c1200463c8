package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KantoPokedex/audio"
	"KantoPokedex/catalog"
	"KantoPokedex/config"
	"KantoPokedex/loading"
	"KantoPokedex/present"
	"KantoPokedex/viewer"
)

type testEnv struct {
	srv      *PokedexWebServer
	ts       *httptest.Server
	sessions *viewer.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithBase(t, "/static")
}

func newTestEnvWithBase(t *testing.T, publicBase string) *testEnv {
	t.Helper()
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Addr: ":0", PublicBase: publicBase, AllowedOrigin: "*"},
	}
	base := strings.TrimRight(publicBase, "/")
	sessions := viewer.NewRegistry(viewer.Deps{
		Seed:     seed,
		Router:   present.NewRouter(seed.Media, base),
		Loading:  loading.Config{Interval: time.Hour, MinStep: 2, MaxStep: 12},
		Track:    &audio.Track{Name: "theme.wav"},
		TrackURL: base + "/theme.wav",
	}, time.Hour)

	srv, err := NewPokedexWebServer(cfg, sessions, nil, nil)
	require.NoError(t, err)
	srv.wsManager.Start()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.wsManager.Stop()
		sessions.CloseAll()
	})
	return &testEnv{srv: srv, ts: ts, sessions: sessions}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func (e *testEnv) session(t *testing.T, c *http.Client) *viewer.Session {
	t.Helper()
	u, _ := url.Parse(e.ts.URL)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == SessionCookie {
			s, ok := e.sessions.Get(ck.Value)
			require.True(t, ok)
			return s
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestHomePage_HidesUnknownEntries(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)

	assert.Equal(t, 151, doc.Find("#list .row[data-id]").Length())
	assert.Equal(t, "Bulbasaur", doc.Find(`#list .row[data-id="1"] .row-name`).Text())
	assert.Equal(t, present.MaskedName, doc.Find(`#list .row[data-id="3"] .row-name`).Text())
	assert.Equal(t, "003", doc.Find(`#list .row[data-id="3"] .row-number`).Text())
	assert.NotContains(t, string(body), "Venusaur")
	assert.NotContains(t, string(body), "Mewtwo")

	assert.Equal(t, "Charmander", doc.Find("#viewer .plate-name").Text())
	assert.Equal(t, string(present.KindMedia), doc.Find("#viewer").AttrOr("data-kind", ""))
	assert.Equal(t, 1, doc.Find("#viewer iframe.media").Length())
	assert.Equal(t, "12", doc.Find("#seen-count").Text())
	assert.Equal(t, "9", doc.Find("#owned-count").Text())

	owned, _ := doc.Find(`#list .row[data-id="1"] .row-icon`).Attr("src")
	assert.Equal(t, "/static/"+present.AssetPokeball, owned)
	notOwned, _ := doc.Find(`#list .row[data-id="3"] .row-icon`).Attr("src")
	assert.Equal(t, "/static/"+present.AssetPokeballOpen, notOwned)
}

func TestHomePage_Search(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	_, body := env.do(t, c, http.MethodGet, "/?q=saur", "")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("#list .row[data-id]").Length())
	assert.Equal(t, "saur", doc.Find("#search-input").AttrOr("value", ""))

	// a plain reload keeps the remembered query
	_, body = env.do(t, c, http.MethodGet, "/", "")
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("#list .row[data-id]").Length())

	// submitting the form empty clears it
	_, body = env.do(t, c, http.MethodGet, "/?q=", "")
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 151, doc.Find("#list .row[data-id]").Length())
	assert.Empty(t, doc.Find("#search-input").AttrOr("value", ""))

	_, body = env.do(t, c, http.MethodGet, "/?q=zzzz", "")
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Find("#list .row[data-id]").Length())
	assert.Equal(t, 1, doc.Find("#list .row.empty").Length())
}

func TestSessionCookieIsReused(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, _ := env.do(t, c, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Cookies())
	first := env.session(t, c)

	resp, _ = env.do(t, c, http.MethodGet, "/api/state", "")
	assert.Empty(t, resp.Cookies())
	assert.Same(t, first, env.session(t, c))
	assert.Equal(t, 1, env.sessions.Len())
}

func TestAPI_Entries(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodGet, "/api/entries?q=%20SAUR%20", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list entriesResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, "SAUR", list.Query)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, []string{"Bulbasaur", "Ivysaur"}, []string{list.Rows[0].Name, list.Rows[1].Name})
	assert.Equal(t, viewer.Counts{Seen: 12, Owned: 9}, list.Counts)

	// unknown entries are found by number, never by their hidden name
	_, body = env.do(t, c, http.MethodGet, "/api/entries?q=venusaur", "")
	list = entriesResponse{}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Zero(t, list.Count)
	_, body = env.do(t, c, http.MethodGet, "/api/entries?q=003", "")
	list = entriesResponse{}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, 3, list.Rows[0].ID)
	assert.Equal(t, present.MaskedName, list.Rows[0].Name)

	// listing does not change what the session shows
	_, body = env.do(t, c, http.MethodGet, "/api/state", "")
	var st viewer.State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Empty(t, st.Query)
	assert.Len(t, st.Rows, 151)

	resp, body = env.do(t, c, http.MethodGet, "/api/entries/3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view present.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, present.KindRedacted, view.Kind)
	assert.Equal(t, present.MaskedName, view.Name)
	assert.Empty(t, view.Types)

	resp, body = env.do(t, c, http.MethodGet, "/api/entries/25", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "Pikachu", view.Name)
	assert.Equal(t, present.KindMedia, view.Kind)
	assert.NotEmpty(t, view.MediaURL)

	resp, body = env.do(t, c, http.MethodGet, "/api/entries/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Pokemon not found"}`, string(body))
}

func TestAPI_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodPut, "/api/entries/3/status", `{"status":"seen"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out statusResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, catalog.StatusSeen, out.Status)
	assert.Equal(t, viewer.Counts{Seen: 13, Owned: 9}, out.Counts)

	_, body = env.do(t, c, http.MethodGet, "/api/entries/3", "")
	var view present.View
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, "Venusaur", view.Name)
	assert.False(t, view.Caught)

	resp, _ = env.do(t, c, http.MethodPut, "/api/entries/3/status", `{"status":"legendary"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, c, http.MethodPut, "/api/entries/3/status", `{"state":"owned"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, c, http.MethodPut, "/api/entries/999/status", `{"status":"owned"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// another viewer still starts from the seed
	other := env.client(t)
	_, body = env.do(t, other, http.MethodGet, "/api/entries/3", "")
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, present.MaskedName, view.Name)
}

func TestAPI_SetStatusReleasesDeferredAudio(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodGet, "/api/state", "")
	sess := env.session(t, c)

	var mu sync.Mutex
	var played []audio.Command
	unmount := sess.Mount(context.Background(), func(ev viewer.Event) {
		if cmd, ok := ev.Data.(audio.Command); ok && ev.Type == viewer.EventAudio {
			mu.Lock()
			played = append(played, cmd)
			mu.Unlock()
		}
	})
	defer unmount()

	sess.StartAudio(context.Background())
	assert.False(t, sess.AudioPlaying())

	resp, _ := env.do(t, c, http.MethodPut, "/api/entries/3/status", `{"status":"seen"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, sess.AudioPlaying())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, played, 1)
	assert.Equal(t, audio.ActionPlay, played[0].Action)
}

func TestRootPublicBase_ServesPageAndAssets(t *testing.T) {
	env := newTestEnvWithBase(t, "/")
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.Equal(t, 151, doc.Find("#list .row[data-id]").Length())
	icon, _ := doc.Find(`#list .row[data-id="1"] .row-icon`).Attr("src")
	assert.Equal(t, "/"+present.AssetPokeball, icon)

	for _, path := range []string{"/app.css", "/" + present.AssetPokeball, "/api/status", "/healthz"} {
		resp, _ = env.do(t, c, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAPI_Selection(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodPost, "/api/selection/25", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st viewer.State
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 25, st.SelectedID)
	assert.True(t, st.OverlayOpen)

	_, body = env.do(t, c, http.MethodPost, "/api/selection/next", "")
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 26, st.SelectedID)

	_, body = env.do(t, c, http.MethodPost, "/api/selection/previous", "")
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 25, st.SelectedID)

	_, body = env.do(t, c, http.MethodPost, "/api/selection/close", "")
	st = viewer.State{}
	require.NoError(t, json.Unmarshal(body, &st))
	assert.False(t, st.OverlayOpen)
	require.NotNil(t, st.RestoreScroll)
	assert.Equal(t, 25, st.SelectedID)

	_, body = env.do(t, c, http.MethodPost, "/api/selection/open", "")
	st = viewer.State{}
	require.NoError(t, json.Unmarshal(body, &st))
	assert.True(t, st.OverlayOpen)

	resp, _ = env.do(t, c, http.MethodPost, "/api/selection/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, c, http.MethodGet, "/api/selection/next", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAPI_Settings(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodPatch, "/api/settings", `{"volume":3,"dark_mode":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cur struct {
		Volume   float64 `json:"volume"`
		DarkMode bool    `json:"dark_mode"`
		Autoplay bool    `json:"autoplay"`
	}
	require.NoError(t, json.Unmarshal(body, &cur))
	assert.Equal(t, 1.0, cur.Volume)
	assert.True(t, cur.DarkMode)
	assert.True(t, cur.Autoplay)

	resp, _ = env.do(t, c, http.MethodPatch, "/api/settings", `{"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.do(t, c, http.MethodPost, "/api/settings/panel", "")
	assert.JSONEq(t, `{"open":true}`, string(body))
	_, body = env.do(t, c, http.MethodPost, "/api/settings/panel", "")
	assert.JSONEq(t, `{"open":false}`, string(body))

	_, body = env.do(t, c, http.MethodGet, "/", "")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	require.NoError(t, err)
	assert.True(t, doc.Find("body").HasClass("dark"))
}

func TestAPI_StatusAndCORS(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp, body := env.do(t, c, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.EqualValues(t, 1, status["sessions"])
	assert.EqualValues(t, 0, status["websocket_clients"])
	assert.Equal(t, false, status["loaded"])

	resp, _ = env.do(t, c, http.MethodOptions, "/api/entries", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, name := range []string{present.AssetPokeball, present.AssetPokeballOpen, present.AssetPlaceholder, present.AssetRedacted, "app.js", "app.css", "theme.wav"} {
		resp, _ := env.do(t, c, http.MethodGet, "/static/"+name, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
	}
	resp, _ := env.do(t, c, http.MethodGet, "/static/missing.png", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := env.do(t, c, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) dial(t *testing.T, c *http.Client) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(e.ts.URL)
	header := http.Header{}
	for _, ck := range c.Jar.Cookies(u) {
		header.Add("Cookie", ck.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.ts.URL, "http")+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// nextState reads until a state message satisfying ok arrives.
func nextState(t *testing.T, conn *websocket.Conn, ok func(viewer.State) bool) viewer.State {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != viewer.EventState {
			continue
		}
		var st viewer.State
		require.NoError(t, json.Unmarshal(msg.Data, &st))
		if ok(st) {
			return st
		}
	}
}

func TestWebSocket_KeysMoveSelection(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodGet, "/", "")
	sess := env.session(t, c)

	conn := env.dial(t, c)
	st := nextState(t, conn, func(viewer.State) bool { return true })
	assert.Equal(t, 4, st.SelectedID)
	require.Eventually(t, func() bool { return sess.KeyListeners() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "key", "data": map[string]string{"key": "ArrowDown"}}))
	st = nextState(t, conn, func(s viewer.State) bool { return s.SelectedID == 5 })
	assert.Equal(t, "Charmeleon", st.Selected.Name)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "scroll", "data": map[string]int{"offset": 140}}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "key", "data": map[string]string{"key": "Enter"}}))
	nextState(t, conn, func(s viewer.State) bool { return s.OverlayOpen })

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "outside_click", "data": map[string]string{"target": "overlay"}}))
	st = nextState(t, conn, func(s viewer.State) bool { return !s.OverlayOpen })
	require.NotNil(t, st.RestoreScroll)
	assert.Equal(t, 140, *st.RestoreScroll)

	conn.Close()
	require.Eventually(t, func() bool { return sess.Mounted() == 0 && sess.KeyListeners() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_RejectsUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	header := http.Header{}
	header.Add("Cookie", SessionCookie+"=does-not-exist")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.ts.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_ReceivesRESTChanges(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	env.do(t, c, http.MethodGet, "/", "")
	conn := env.dial(t, c)
	nextState(t, conn, func(viewer.State) bool { return true })

	resp, _ := env.do(t, c, http.MethodPut, "/api/entries/150/status", `{"status":"owned"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := nextState(t, conn, func(s viewer.State) bool { return s.Counts.Owned == 10 })
	assert.Equal(t, 13, st.Counts.Seen)
}
