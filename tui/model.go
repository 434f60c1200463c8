// Package tui is a terminal front end for one viewer session.
package tui

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/microcosm-cc/bluemonday"

	"KantoPokedex/catalog"
	"KantoPokedex/loading"
	"KantoPokedex/present"
	"KantoPokedex/selection"
	"KantoPokedex/settings"
	"KantoPokedex/viewer"
)

const (
	volumeStep  = 0.1
	barWidth    = 30
	minListRows = 5
)

type eventMsg viewer.Event

// Model renders a session and forwards keys to it.
type Model struct {
	sess    *viewer.Session
	events  chan viewer.Event
	unmount func()

	search    textinput.Model
	searching bool
	spin      spinner.Model

	state   viewer.State
	offset  int
	height  int
	width   int
	playing bool
	err     string
}

// New mounts sess. The returned model must be run or closed.
func New(sess *viewer.Session) Model {
	events := make(chan viewer.Event, 64)
	unmount := sess.Mount(context.Background(), func(ev viewer.Event) {
		select {
		case events <- ev:
		default:
		}
	})

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name, type or category"
	search.CharLimit = 32

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		sess:    sess,
		events:  events,
		unmount: unmount,
		search:  search,
		spin:    sp,
		height:  24,
		width:   80,
	}
	m.refresh()
	return m
}

// Close unmounts the session; safe to call more than once.
func (m Model) Close() { m.unmount() }

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spin.Tick)
}

func waitForEvent(ch <-chan viewer.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.keepVisible()
		return m, nil

	case eventMsg:
		if msg.Type == viewer.EventAudio {
			m.playing = m.sess.AudioPlaying()
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case spinner.TickMsg:
		if m.state.Loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Close()
			return m, tea.Quit
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.sess.Search(m.search.Value())
	m.offset = 0
	m.refresh()
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	m.err = ""
	m.sess.Gesture(ctx)

	switch msg.String() {
	case "q":
		m.Close()
		return m, tea.Quit
	case "/":
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "up", "k":
		m.sess.Key(selection.KeyUp)
	case "down", "j":
		m.sess.Key(selection.KeyDown)
	case "enter":
		m.sess.Key(selection.KeyEnter)
	case "esc":
		if m.state.PanelOpen {
			m.sess.OutsideClick(viewer.TargetSettings)
		} else {
			m.sess.Key(selection.KeyEscape)
		}
	case "s":
		m.sess.TogglePanel()
	case "+", "=":
		m.adjustVolume(volumeStep)
	case "-":
		m.adjustVolume(-volumeStep)
	case "a":
		m.toggle(func(s settings.Settings, p *settings.Patch) { v := !s.AudioEnabled; p.AudioEnabled = &v })
	case "n":
		m.toggle(func(s settings.Settings, p *settings.Patch) { v := !s.ShowNumbers; p.ShowNumbers = &v })
	case "p":
		m.sess.StartAudio(ctx)
	case "o":
		m.setStatus(catalog.StatusOwned)
	case "e":
		m.setStatus(catalog.StatusSeen)
	case "u":
		m.setStatus(catalog.StatusUnknown)
	}
	m.playing = m.sess.AudioPlaying()
	m.refresh()
	return m, nil
}

func (m *Model) adjustVolume(delta float64) {
	v := settings.ClampVolume(m.sess.Settings().Volume + delta)
	m.sess.UpdateSettings(context.Background(), settings.Patch{Volume: &v})
}

func (m *Model) toggle(fill func(settings.Settings, *settings.Patch)) {
	var p settings.Patch
	fill(m.sess.Settings(), &p)
	m.sess.UpdateSettings(context.Background(), p)
}

func (m *Model) setStatus(status catalog.Status) {
	if m.state.SelectedID == 0 {
		return
	}
	if _, err := m.sess.SetStatus(m.state.SelectedID, status); err != nil {
		m.err = err.Error()
	}
}

func (m *Model) refresh() {
	m.state = m.sess.Render()
	if m.state.RestoreScroll != nil {
		m.offset = *m.state.RestoreScroll
	}
	m.keepVisible()
}

func (m *Model) listRows() int {
	n := m.height - 8
	if n < minListRows {
		n = minListRows
	}
	return n
}

// keepVisible scrolls the list so the selection stays on screen and reports
// the new offset to the session.
func (m *Model) keepVisible() {
	idx := -1
	for i, r := range m.state.Rows {
		if r.ID == m.state.SelectedID {
			idx = i
			break
		}
	}
	rows := m.listRows()
	offset := m.offset
	if idx >= 0 {
		if idx < offset {
			offset = idx
		}
		if idx >= offset+rows {
			offset = idx - rows + 1
		}
	}
	if limit := len(m.state.Rows) - rows; offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	m.offset = offset
	if !m.state.OverlayOpen {
		m.sess.SetScroll(m.offset)
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Pokédex"))
	b.WriteString("  ")
	b.WriteString(faintStyle.Render(fmt.Sprintf("seen %d  owned %d", m.state.Counts.Seen, m.state.Counts.Owned)))
	if m.playing {
		b.WriteString(faintStyle.Render("  ♪"))
	}
	b.WriteString("\n")

	if !m.state.Loaded {
		b.WriteString(m.spin.View() + " " + renderBar(m.state.Progress) + "\n\n")
	}

	if m.searching || m.state.Query != "" {
		b.WriteString(m.search.View() + "\n")
	}

	list := m.renderList()
	detail := m.renderDetail()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", detail))
	b.WriteString("\n")

	if m.state.PanelOpen {
		b.WriteString(m.renderPanel() + "\n")
	}
	if m.err != "" {
		b.WriteString(errStyle.Render(m.err) + "\n")
	}
	b.WriteString(faintStyle.Render("↑/↓ move • enter details • esc close • / search • o/e/u owned/seen/unknown • s settings • q quit"))
	return b.String()
}

func renderBar(progress int) string {
	if progress > loading.Complete {
		progress = loading.Complete
	}
	full := barWidth * progress / loading.Complete
	return barFull.Render(strings.Repeat("█", full)) +
		barEmpty.Render(strings.Repeat("░", barWidth-full)) +
		fmt.Sprintf(" %3d%%", progress)
}

func (m Model) renderList() string {
	if len(m.state.Rows) == 0 {
		return paneStyle.Render(faintStyle.Render("No Pokémon match your search."))
	}
	end := m.offset + m.listRows()
	if end > len(m.state.Rows) {
		end = len(m.state.Rows)
	}
	lines := make([]string, 0, end-m.offset)
	for _, r := range m.state.Rows[m.offset:end] {
		mark := "○"
		if r.Status == string(catalog.StatusOwned) {
			mark = "●"
		}
		line := mark + " "
		if r.Number != "" {
			line += r.Number + " "
		}
		name := r.Name
		if name == present.MaskedName {
			name = maskedStyle.Render(name)
		}
		line += name
		if r.ID == m.state.SelectedID {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return paneStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail() string {
	v := m.state.Selected
	var b strings.Builder
	header := v.Name
	if v.Number != "" {
		header = "#" + v.Number + " " + header
	}
	b.WriteString(valueStyle.Render(header) + "\n")

	types := present.MaskedText
	if len(v.Types) > 0 {
		types = strings.Join(v.Types, " / ")
	}
	b.WriteString(labelStyle.Render("Type") + types + "\n")
	if m.state.OverlayOpen {
		b.WriteString(labelStyle.Render("Category") + v.Category + "\n")
		b.WriteString(labelStyle.Render("Habitat") + v.Habitat + "\n")
		b.WriteString(labelStyle.Render("Height") + v.Height + "\n")
		b.WriteString(labelStyle.Render("Weight") + v.Weight + "\n")
		b.WriteString(plainText(string(v.Description)) + "\n")
	}
	switch v.Kind {
	case present.KindMedia:
		b.WriteString(faintStyle.Render("3D model: "+v.MediaURL) + "\n")
	case present.KindRedacted:
		b.WriteString(faintStyle.Render("Not yet encountered") + "\n")
	}
	if v.Caught {
		b.WriteString(caughtStyle.Render("Caught"))
	}
	return paneStyle.Width(40).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderPanel() string {
	s := m.state.Settings
	onOff := func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	}
	lines := []string{
		labelStyle.Render("Volume") + fmt.Sprintf("%.0f%% (+/-)", s.Volume*100),
		labelStyle.Render("Music") + onOff(s.AudioEnabled) + " (a)",
		labelStyle.Render("Autoplay") + onOff(s.Autoplay),
		labelStyle.Render("Numbers") + onOff(s.ShowNumbers) + " (n)",
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

var textPolicy = bluemonday.StrictPolicy()

// plainText reduces rendered description HTML to one line of terminal text.
func plainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(textPolicy.Sanitize(s))), " ")
}

// Run drives the model until the user quits or ctx is cancelled.
func Run(ctx context.Context, sess *viewer.Session) error {
	m := New(sess)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
