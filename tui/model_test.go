package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KantoPokedex/catalog"
	"KantoPokedex/loading"
	"KantoPokedex/present"
	"KantoPokedex/viewer"
)

func newSession(t *testing.T) *viewer.Session {
	t.Helper()
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	s := viewer.NewSession("tui", viewer.Deps{
		Seed:    seed,
		Router:  present.NewRouter(seed.Media, "/static"),
		Loading: loading.Config{Interval: time.Hour, MinStep: 2, MaxStep: 12},
	})
	t.Cleanup(s.Close)
	return s
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_NavigatesAndMarksEntries(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	defer m.Close()
	assert.Equal(t, 1, sess.KeyListeners())
	assert.Equal(t, 4, m.state.SelectedID)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 5, m.state.SelectedID)
	assert.False(t, m.state.OverlayOpen)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.state.OverlayOpen)
	assert.Contains(t, m.View(), "Charmeleon")

	m = press(t, m, runes("e"))
	assert.Equal(t, viewer.Counts{Seen: 12, Owned: 8}, m.state.Counts)

	m = press(t, m, runes("u"))
	assert.Equal(t, present.MaskedName, m.state.Selected.Name)
	assert.Equal(t, viewer.Counts{Seen: 11, Owned: 8}, m.state.Counts)

	m = press(t, m, runes("o"))
	assert.Equal(t, "Charmeleon", m.state.Selected.Name)
	assert.Equal(t, viewer.Counts{Seen: 12, Owned: 9}, m.state.Counts)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.state.OverlayOpen)
}

func TestModel_SettingsPanelAndVolume(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	defer m.Close()

	m = press(t, m, runes("s"))
	assert.True(t, m.state.PanelOpen)
	assert.Contains(t, m.View(), "Volume")

	m = press(t, m, runes("+"))
	assert.InDelta(t, 0.6, sess.Settings().Volume, 1e-9)
	m = press(t, m, runes("+"), runes("+"), runes("+"), runes("+"), runes("+"))
	assert.Equal(t, 1.0, sess.Settings().Volume)
	m = press(t, m, runes("-"))
	assert.InDelta(t, 0.9, sess.Settings().Volume, 1e-9)

	m = press(t, m, runes("n"))
	assert.False(t, m.state.Settings.ShowNumbers)
	assert.Empty(t, m.state.Rows[0].Number)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.state.PanelOpen)
}

func TestModel_Search(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	defer m.Close()

	m = press(t, m, runes("/"))
	require.True(t, m.searching)
	m = press(t, m, runes("s"), runes("a"), runes("u"), runes("r"))
	assert.Len(t, m.state.Rows, 2)
	assert.Equal(t, "saur", m.state.Query)

	// keys typed into the search box do not reach the list
	assert.False(t, m.state.PanelOpen)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.searching)
	assert.Contains(t, m.View(), "Ivysaur")
}

func TestModel_QuitUnmounts(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	assert.Equal(t, 1, sess.Mounted())

	next, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
	assert.Equal(t, 0, sess.Mounted())
	assert.Equal(t, 0, sess.KeyListeners())

	next.(Model).Close()
	assert.Equal(t, 0, sess.Mounted())
}

func TestModel_LoadingBarUntilLoaded(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	defer m.Close()

	assert.Contains(t, m.View(), "  0%")
	next, cmd := m.Update(eventMsg{Type: viewer.EventProgress, Data: 40})
	assert.NotNil(t, cmd)
	assert.False(t, next.(Model).state.Loaded)

	assert.Contains(t, renderBar(50), " 50%")
	assert.Contains(t, renderBar(250), "100%")
}

func TestModel_DetailShowsDescriptionAsText(t *testing.T) {
	sess := newSession(t)
	m := New(sess)
	defer m.Close()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, 2, m.state.SelectedID)
	require.True(t, m.state.OverlayOpen)
	assert.Contains(t, string(m.state.Selected.Description), "<strong>absorbs nutrients</strong>")

	assert.Equal(t,
		"The bud on its back swells as it absorbs nutrients. A sweet scent means it is about to bloom.",
		plainText(string(m.state.Selected.Description)))

	view := m.View()
	assert.Contains(t, view, "absorbs")
	assert.Contains(t, view, "nutrients")
	assert.NotContains(t, view, "**")
	assert.NotContains(t, view, "<strong>")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Fire & flame", plainText("<p>Fire &amp; <em>flame</em></p>\n"))
	assert.Equal(t, "One. Two.", plainText("<p>One.</p>\n<p>Two.</p>\n"))
	assert.Equal(t, "a < b", plainText("a &lt; b<script>alert(1)</script>"))
	assert.Empty(t, plainText(""))
}
