package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the static data every session starts from.
type Seed struct {
	Store            *Store
	DefaultSelection int
	// Media maps entry ids to an embeddable 3D viewer URL.
	Media map[int]string
}

type seedFile struct {
	DefaultSelection int            `yaml:"default_selection"`
	Media            map[int]string `yaml:"media"`
	Entries          []seedEntry    `yaml:"entries"`
}

type seedEntry struct {
	ID          int      `yaml:"id"`
	Name        string   `yaml:"name"`
	Status      string   `yaml:"status"`
	Types       []string `yaml:"types"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Habitat     string   `yaml:"habitat"`
	Height      string   `yaml:"height"`
	Weight      string   `yaml:"weight"`
}

// DefaultSeed decodes the embedded Kanto seed.
func DefaultSeed() (*Seed, error) {
	return DecodeSeed(bytes.NewReader(defaultSeed))
}

// LoadSeed reads a seed file from disk. An empty path falls back to the embedded seed.
func LoadSeed(path string) (*Seed, error) {
	if path == "" {
		return DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open seed: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// DecodeSeed parses a YAML seed document.
func DecodeSeed(r io.Reader) (*Seed, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("catalog: decode seed: %w", err)
	}

	entries := make([]Entry, 0, len(sf.Entries))
	for _, se := range sf.Entries {
		status, err := ParseStatus(se.Status)
		if err != nil {
			return nil, fmt.Errorf("catalog: seed entry %d: %w", se.ID, err)
		}
		entries = append(entries, Entry{
			ID:          se.ID,
			Name:        se.Name,
			Status:      status,
			Types:       se.Types,
			Category:    se.Category,
			Description: se.Description,
			Habitat:     se.Habitat,
			Height:      se.Height,
			Weight:      se.Weight,
		})
	}
	store, err := NewStore(entries)
	if err != nil {
		return nil, err
	}

	seed := &Seed{
		Store:            store,
		DefaultSelection: sf.DefaultSelection,
		Media:            map[int]string{},
	}
	if seed.DefaultSelection != 0 {
		if _, ok := store.Find(seed.DefaultSelection); !ok {
			return nil, fmt.Errorf("catalog: default selection %d: %w", seed.DefaultSelection, ErrNotFound)
		}
	}
	for id, url := range sf.Media {
		if _, ok := store.Find(id); !ok {
			return nil, fmt.Errorf("catalog: media for id %d: %w", id, ErrNotFound)
		}
		seed.Media[id] = url
	}
	return seed, nil
}
