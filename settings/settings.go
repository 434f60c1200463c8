package settings

import "math"

const DefaultVolume = 0.5

// Settings holds presentation preferences. None of them affect catalog data.
type Settings struct {
	Volume       float64 `json:"volume"`
	AudioEnabled bool    `json:"audio_enabled"`
	Autoplay     bool    `json:"autoplay"`
	Animations   bool    `json:"animations"`
	ShowNumbers  bool    `json:"show_numbers"`
	DarkMode     bool    `json:"dark_mode"`
	Compact      bool    `json:"compact"`
}

func Defaults() Settings {
	return Settings{
		Volume:       DefaultVolume,
		AudioEnabled: true,
		Autoplay:     true,
		Animations:   true,
		ShowNumbers:  true,
	}
}

// ClampVolume bounds v to [0,1]. NaN falls back to the default volume.
func ClampVolume(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultVolume
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func (s *Settings) SetVolume(v float64)     { s.Volume = ClampVolume(v) }
func (s *Settings) SetAudioEnabled(on bool) { s.AudioEnabled = on }
func (s *Settings) SetAutoplay(on bool)     { s.Autoplay = on }
func (s *Settings) SetAnimations(on bool)   { s.Animations = on }
func (s *Settings) SetShowNumbers(on bool)  { s.ShowNumbers = on }
func (s *Settings) SetDarkMode(on bool)     { s.DarkMode = on }
func (s *Settings) SetCompact(on bool)      { s.Compact = on }

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	Volume       *float64 `json:"volume,omitempty"`
	AudioEnabled *bool    `json:"audio_enabled,omitempty"`
	Autoplay     *bool    `json:"autoplay,omitempty"`
	Animations   *bool    `json:"animations,omitempty"`
	ShowNumbers  *bool    `json:"show_numbers,omitempty"`
	DarkMode     *bool    `json:"dark_mode,omitempty"`
	Compact      *bool    `json:"compact,omitempty"`
}

// Apply runs each present field through its setter.
func (s *Settings) Apply(p Patch) {
	if p.Volume != nil {
		s.SetVolume(*p.Volume)
	}
	if p.AudioEnabled != nil {
		s.SetAudioEnabled(*p.AudioEnabled)
	}
	if p.Autoplay != nil {
		s.SetAutoplay(*p.Autoplay)
	}
	if p.Animations != nil {
		s.SetAnimations(*p.Animations)
	}
	if p.ShowNumbers != nil {
		s.SetShowNumbers(*p.ShowNumbers)
	}
	if p.DarkMode != nil {
		s.SetDarkMode(*p.DarkMode)
	}
	if p.Compact != nil {
		s.SetCompact(*p.Compact)
	}
}

// Panel is the visibility of the settings panel.
type Panel struct {
	open bool
}

func (p *Panel) Open() bool { return p.open }

func (p *Panel) Toggle() bool {
	p.open = !p.open
	return p.open
}

func (p *Panel) Close() { p.open = false }

// OutsideClick is called by the host for clicks outside the panel.
func (p *Panel) OutsideClick() bool {
	if !p.open {
		return false
	}
	p.open = false
	return true
}
