// Package loading drives the simulated progress bar shown before the viewer
// accepts input.
package loading

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

const Complete = 100

// Config bounds the timer and the random increments.
type Config struct {
	Interval time.Duration
	MinStep  int
	MaxStep  int
}

func DefaultConfig() Config {
	return Config{Interval: 150 * time.Millisecond, MinStep: 2, MaxStep: 12}
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultConfig().Interval
	}
	if c.MinStep < 1 {
		c.MinStep = 1
	}
	if c.MaxStep < c.MinStep {
		c.MaxStep = c.MinStep
	}
	return c
}

// Sequencer counts from 0 to Complete once.
type Sequencer struct {
	cfg        Config
	onProgress func(int)
	onDone     func()

	mu       sync.Mutex
	rnd      *rand.Rand
	progress int
	started  bool
	stopped  bool
	done     bool
	stop     chan struct{}
}

// New creates a sequencer. rnd may be nil; callbacks may be nil.
func New(cfg Config, rnd *rand.Rand, onProgress func(int), onDone func()) *Sequencer {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &Sequencer{
		cfg:        cfg.normalized(),
		rnd:        rnd,
		onProgress: onProgress,
		onDone:     onDone,
		stop:       make(chan struct{}),
	}
}

// Start runs the timer in the background until completion, Stop, or ctx
// cancellation. Only the first call has an effect.
func (s *Sequencer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped || s.done {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Sequencer) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if _, finished, ok := s.Step(); !ok || finished {
				return
			}
		}
	}
}

// Step advances by one random increment. It returns the new value, whether
// this step completed the sequence, and false once stopped or complete.
func (s *Sequencer) Step() (int, bool, bool) {
	s.mu.Lock()
	if s.stopped || s.done {
		s.mu.Unlock()
		return s.progress, false, false
	}
	s.progress += s.cfg.MinStep + s.rnd.IntN(s.cfg.MaxStep-s.cfg.MinStep+1)
	if s.progress >= Complete {
		s.progress = Complete
		s.done = true
	}
	value, finished := s.progress, s.done
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(value)
	}
	if finished && s.onDone != nil {
		s.onDone()
	}
	return value, finished, true
}

// Stop clears the timer. A sequence stopped early never reports completion.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
}

func (s *Sequencer) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Sequencer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
