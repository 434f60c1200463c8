package catalog

import (
	"fmt"
	"strings"
)

// Status is the discovery progress of a Pokédex entry.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusSeen    Status = "seen"
	StatusOwned   Status = "owned"
)

// ParseStatus converts user or seed input into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusUnknown:
		return StatusUnknown, nil
	case StatusSeen:
		return StatusSeen, nil
	case StatusOwned:
		return StatusOwned, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) Valid() bool {
	return s == StatusUnknown || s == StatusSeen || s == StatusOwned
}

// Entry is one Pokémon record in the catalog.
type Entry struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Status      Status   `json:"status"`
	Types       []string `json:"types"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Habitat     string   `json:"habitat,omitempty"`
	Height      string   `json:"height,omitempty"`
	Weight      string   `json:"weight,omitempty"`

	IsCaught      bool `json:"is_caught"`
	IsEncountered bool `json:"is_encountered"`
}

// setStatus is the only place the derived flags are written.
func (e *Entry) setStatus(s Status) {
	e.Status = s
	e.IsCaught = s == StatusOwned
	e.IsEncountered = s != StatusUnknown
}

func (e Entry) clone() Entry {
	e.Types = append([]string(nil), e.Types...)
	return e
}
