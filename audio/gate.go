// Package audio handles the background music. Browsers refuse to start
// playback before the user has interacted with the page, so every start
// request waits for a recorded gesture.
package audio

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"KantoPokedex/settings"
)

var ErrAutoplayBlocked = errors.New("audio: playback blocked until a user gesture")

const (
	ActionPlay   = "play"
	ActionStop   = "stop"
	ActionVolume = "volume"
)

// Command is sent to whatever actually plays the track.
type Command struct {
	Action string  `json:"action"`
	Track  string  `json:"track,omitempty"`
	Volume float64 `json:"volume"`
}

// Player delivers commands to the host. Errors are logged and ignored.
type Player interface {
	Play(ctx context.Context, cmd Command) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, cmd Command) error

func (f PlayerFunc) Play(ctx context.Context, cmd Command) error { return f(ctx, cmd) }

// Gate holds start requests until the user has made a gesture.
type Gate struct {
	track  *Track
	url    string
	player Player
	log    *zap.Logger

	mu       sync.Mutex
	gestured bool
	pending  bool
	playing  bool
}

// NewGate creates a gate for track, served to clients at url. A nil track
// means the asset failed to load; every operation is then a no-op.
func NewGate(track *Track, url string, p Player, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{track: track, url: url, player: p, log: log}
}

// Available reports whether a playable track exists.
func (g *Gate) Available() bool { return g.track != nil && g.player != nil }

func (g *Gate) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Start asks for playback. Before any gesture it returns ErrAutoplayBlocked
// and remembers the request; disabled audio makes it a no-op.
func (g *Gate) Start(ctx context.Context, s settings.Settings) error {
	if !g.Available() || !s.AudioEnabled {
		return nil
	}
	g.mu.Lock()
	if !g.gestured {
		g.pending = true
		g.mu.Unlock()
		return ErrAutoplayBlocked
	}
	g.mu.Unlock()
	g.play(ctx, s)
	return nil
}

// Gesture records a user interaction and releases a held start request.
func (g *Gate) Gesture(ctx context.Context, s settings.Settings) {
	g.mu.Lock()
	g.gestured = true
	release := g.pending
	g.pending = false
	g.mu.Unlock()

	if release && g.Available() && s.AudioEnabled {
		g.play(ctx, s)
	}
}

// Stop halts playback and drops any held start request.
func (g *Gate) Stop(ctx context.Context) {
	g.mu.Lock()
	g.pending = false
	wasPlaying := g.playing
	g.playing = false
	g.mu.Unlock()

	if wasPlaying {
		g.send(ctx, Command{Action: ActionStop, Track: g.url})
	}
}

// Sync applies changed settings to running playback.
func (g *Gate) Sync(ctx context.Context, s settings.Settings) {
	if !s.AudioEnabled {
		g.Stop(ctx)
		return
	}
	if g.Playing() {
		g.send(ctx, Command{Action: ActionVolume, Track: g.url, Volume: s.Volume})
	}
}

func (g *Gate) play(ctx context.Context, s settings.Settings) {
	g.mu.Lock()
	if g.playing {
		g.mu.Unlock()
		return
	}
	g.playing = true
	g.mu.Unlock()

	if err := g.send(ctx, Command{Action: ActionPlay, Track: g.url, Volume: s.Volume}); err != nil {
		g.mu.Lock()
		g.playing = false
		g.mu.Unlock()
	}
}

func (g *Gate) send(ctx context.Context, cmd Command) error {
	if g.player == nil {
		return nil
	}
	err := g.player.Play(ctx, cmd)
	if err != nil {
		g.log.Warn("audio command failed", zap.String("action", cmd.Action), zap.Error(err))
	}
	return err
}
