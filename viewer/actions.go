package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"KantoPokedex/audio"
	"KantoPokedex/catalog"
	"KantoPokedex/loading"
	"KantoPokedex/present"
	"KantoPokedex/selection"
	"KantoPokedex/settings"
)

// Outside-click targets reported by the host.
const (
	TargetOverlay  = "overlay"
	TargetSettings = "settings"
)

// Render builds the current state. A scroll restoration scheduled by closing
// the overlay is handed out with the first render after the close.
func (s *Session) Render() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.renderLocked(true)
}

// Snapshot renders without consuming a pending scroll restoration.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked(false)
}

func (s *Session) renderLocked(frame bool) State {
	st := State{
		Rows:        s.deps.Router.Rows(s.store.SearchRevealed(s.query), s.settings),
		Counts:      Counts{Seen: s.store.SeenCount(), Owned: s.store.OwnedCount()},
		Query:       s.query,
		OverlayOpen: s.ctl.OverlayOpen(),
		PanelOpen:   s.panel.Open(),
		Settings:    s.settings,
		Loaded:      s.loaded,
		Progress:    s.progressLocked(),
	}
	if id, ok := s.ctl.Selected(); ok {
		e, _ := s.store.Find(id)
		st.SelectedID = id
		st.Selected = s.deps.Router.Resolve(&e, s.settings)
	} else {
		st.Selected = s.deps.Router.Resolve(nil, s.settings)
	}
	if frame {
		if offset, ok := s.ctl.NextFrame(); ok {
			st.RestoreScroll = &offset
		}
	}
	return st
}

func (s *Session) progressLocked() int {
	if s.loaded {
		return loading.Complete
	}
	if s.seq != nil {
		return s.seq.Progress()
	}
	return 0
}

// Search filters the list and remembers the term for later renders.
func (s *Session) Search(term string) []present.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = strings.TrimSpace(term)
	return s.deps.Router.Rows(s.store.SearchRevealed(s.query), s.settings)
}

// Filter returns the rows matching term without remembering it.
func (s *Session) Filter(term string) []present.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deps.Router.Rows(s.store.SearchRevealed(term), s.settings)
}

// Counts returns the seen and owned totals.
func (s *Session) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{Seen: s.store.SeenCount(), Owned: s.store.OwnedCount()}
}

// Entry resolves the view for one entry.
func (s *Session) Entry(id int) (present.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.Find(id)
	if !ok {
		return present.View{}, fmt.Errorf("%w: id %d", catalog.ErrNotFound, id)
	}
	return s.deps.Router.Resolve(&e, s.settings), nil
}

// SetStatus changes an entry's discovery status.
func (s *Session) SetStatus(id int, status catalog.Status) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetStatus(id, status); err != nil {
		return Counts{}, err
	}
	s.log.Debug("status changed", zap.Int("id", id), zap.String("status", string(status)))
	return Counts{Seen: s.store.SeenCount(), Owned: s.store.OwnedCount()}, nil
}

// Select focuses an entry and opens its details.
func (s *Session) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctl.Select(id) {
		return fmt.Errorf("%w: id %d", catalog.ErrNotFound, id)
	}
	return nil
}

// SelectAdjacent steps through the list; false means it stayed put.
func (s *Session) SelectAdjacent(d selection.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.SelectAdjacent(d)
}

func (s *Session) OpenDetails() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.OpenDetails()
}

func (s *Session) CloseDetails() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.Close()
}

// Key delivers a key press to the listeners bound while a surface is
// mounted. Without a mounted surface nothing listens.
func (s *Session) Key(k selection.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyboard.Dispatch(k)
}

// SetScroll records the list scroll offset reported by the host.
func (s *Session) SetScroll(offset int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.SetScroll(offset)
}

// OutsideClick is reported by the host for a click outside target.
func (s *Session) OutsideClick(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch target {
	case TargetOverlay:
		return s.ctl.OutsideClick()
	case TargetSettings:
		return s.panel.OutsideClick()
	}
	return false
}

// TogglePanel shows or hides the settings panel.
func (s *Session) TogglePanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.Toggle()
}

func (s *Session) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies a partial update and syncs running audio with it.
func (s *Session) UpdateSettings(ctx context.Context, p settings.Patch) settings.Settings {
	s.mu.Lock()
	s.settings.Apply(p)
	cur := s.settings
	s.mu.Unlock()

	s.gate.Sync(ctx, cur)
	return cur
}

// Gesture records a user interaction, releasing deferred audio.
func (s *Session) Gesture(ctx context.Context) {
	s.mu.Lock()
	cur := s.settings
	s.mu.Unlock()
	s.gate.Gesture(ctx, cur)
}

// StartAudio asks for playback now. Blocked starts are deferred, not errors.
func (s *Session) StartAudio(ctx context.Context) {
	s.mu.Lock()
	cur := s.settings
	s.mu.Unlock()
	if err := s.gate.Start(ctx, cur); errors.Is(err, audio.ErrAutoplayBlocked) {
		s.log.Debug("audio start deferred until user gesture")
	}
}

func (s *Session) AudioPlaying() bool { return s.gate.Playing() }
