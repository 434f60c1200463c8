package audio

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/gopxl/beep/wav"
)

// Track describes the background music file served to clients.
type Track struct {
	Name       string        `json:"name"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
}

// Probe decodes the header of a WAV track so a broken or missing asset is
// detected at startup instead of in the browser.
func Probe(fsys fs.FS, name string) (*Track, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", name, err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: decode %s: %w", name, err)
	}
	defer streamer.Close()

	return &Track{
		Name:       name,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   format.SampleRate.D(streamer.Len()),
	}, nil
}
