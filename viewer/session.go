// Package viewer ties the catalog, selection, settings, loading bar and audio
// together into one session: the state behind a single open Pokédex.
package viewer

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"KantoPokedex/audio"
	"KantoPokedex/catalog"
	"KantoPokedex/loading"
	"KantoPokedex/present"
	"KantoPokedex/selection"
	"KantoPokedex/settings"
)

var ErrNotMounted = errors.New("viewer: no surface mounted")

// Event types pushed to mounted surfaces.
const (
	EventState    = "state"
	EventProgress = "progress"
	EventLoaded   = "loaded"
	EventAudio    = "audio"
)

// Event is pushed to mounted surfaces.
type Event struct {
	Type string
	Data interface{}
}

// Notify receives events for one mounted surface. It must not block.
type Notify func(Event)

// Deps are shared by every session.
type Deps struct {
	Seed     *catalog.Seed
	Router   *present.Router
	Loading  loading.Config
	Track    *audio.Track
	TrackURL string
	Log      *zap.Logger
	// Rand seeds the loading increments; nil uses a time based source.
	Rand func() *rand.Rand
}

// Counts are the Pokédex totals shown under the viewer.
type Counts struct {
	Seen  int `json:"seen"`
	Owned int `json:"owned"`
}

// State is one render of the viewer.
type State struct {
	Rows          []present.Row     `json:"rows"`
	Selected      present.View      `json:"selected"`
	SelectedID    int               `json:"selected_id,omitempty"`
	Counts        Counts            `json:"counts"`
	Query         string            `json:"query"`
	OverlayOpen   bool              `json:"overlay_open"`
	PanelOpen     bool              `json:"panel_open"`
	Settings      settings.Settings `json:"settings"`
	Loaded        bool              `json:"loaded"`
	Progress      int               `json:"progress"`
	RestoreScroll *int              `json:"restore_scroll,omitempty"`
}

// Session is not bound to any transport. All methods are safe for
// concurrent use; state changes are serialized on the session lock.
type Session struct {
	ID string

	deps Deps
	log  *zap.Logger
	gate *audio.Gate

	mu       sync.Mutex
	store    *catalog.Store
	ctl      *selection.Controller
	keyboard *selection.Keyboard
	unbind   func()
	settings settings.Settings
	panel    settings.Panel
	query    string
	seq      *loading.Sequencer
	cancel   context.CancelFunc
	loaded   bool
	mounts   map[int]Notify
	nextID   int
	lastSeen time.Time
}

// NewSession creates a session with a fresh copy of the seed catalog.
func NewSession(id string, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session", id))
	store := deps.Seed.Store.Clone()
	s := &Session{
		ID:       id,
		deps:     deps,
		log:      log,
		store:    store,
		ctl:      selection.NewController(store, deps.Seed.DefaultSelection),
		keyboard: selection.NewKeyboard(),
		settings: settings.Defaults(),
		mounts:   map[int]Notify{},
		lastSeen: time.Now(),
	}
	s.gate = audio.NewGate(deps.Track, deps.TrackURL, audio.PlayerFunc(s.playAudio), log)
	return s
}

// Mount attaches a surface. The first mount binds the keyboard and starts
// the loading bar; the returned function detaches it again.
func (s *Session) Mount(ctx context.Context, notify Notify) (unmount func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.mounts[id] = notify
	s.lastSeen = time.Now()

	if len(s.mounts) == 1 {
		s.unbind = s.ctl.Bind(s.keyboard)
		if !s.loaded {
			s.startLoading()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unmount(id) })
	}
}

func (s *Session) unmount(id int) {
	s.mu.Lock()
	delete(s.mounts, id)
	s.lastSeen = time.Now()
	last := len(s.mounts) == 0
	if last {
		if s.unbind != nil {
			s.unbind()
			s.unbind = nil
		}
		s.stopLoading()
	}
	s.mu.Unlock()

	if last {
		s.gate.Stop(context.Background())
	}
}

// startLoading must be called with s.mu held.
func (s *Session) startLoading() {
	var rnd *rand.Rand
	if s.deps.Rand != nil {
		rnd = s.deps.Rand()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.seq = loading.New(s.deps.Loading, rnd, s.onProgress, s.onLoaded)
	s.seq.Start(ctx)
}

// stopLoading must be called with s.mu held.
func (s *Session) stopLoading() {
	if s.seq != nil && !s.seq.Done() {
		s.seq.Stop()
		s.seq = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) onProgress(v int) {
	s.broadcast(Event{Type: EventProgress, Data: v})
}

func (s *Session) onLoaded() {
	s.mu.Lock()
	s.loaded = true
	cfg := s.settings
	s.mu.Unlock()

	if cfg.Autoplay {
		if err := s.gate.Start(context.Background(), cfg); errors.Is(err, audio.ErrAutoplayBlocked) {
			s.log.Debug("autoplay deferred until user gesture")
		}
	}
	s.broadcast(Event{Type: EventLoaded, Data: true})
}

func (s *Session) playAudio(_ context.Context, cmd audio.Command) error {
	if s.broadcast(Event{Type: EventAudio, Data: cmd}) == 0 {
		return ErrNotMounted
	}
	return nil
}

func (s *Session) broadcast(ev Event) int {
	s.mu.Lock()
	targets := make([]Notify, 0, len(s.mounts))
	for _, n := range s.mounts {
		targets = append(targets, n)
	}
	s.mu.Unlock()

	for _, n := range targets {
		n(ev)
	}
	return len(targets)
}

// Mounted returns how many surfaces are attached.
func (s *Session) Mounted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mounts)
}

// KeyListeners exposes the keyboard listener count.
func (s *Session) KeyListeners() int {
	return s.keyboard.Len()
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close detaches everything and stops background work.
func (s *Session) Close() {
	s.mu.Lock()
	s.mounts = map[int]Notify{}
	if s.unbind != nil {
		s.unbind()
		s.unbind = nil
	}
	s.stopLoading()
	s.mu.Unlock()
	s.gate.Stop(context.Background())
}
