package catalog

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var (
	ErrNotFound      = errors.New("catalog: entry not found")
	ErrInvalidStatus = errors.New("catalog: invalid status")
)

// Store owns the ordered list of entries for one viewer session.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	entries []Entry
	index   map[int]int
}

// NewStore builds a store from entries already sorted by ascending id.
// The derived flags are recomputed from each entry's status.
func NewStore(entries []Entry) (*Store, error) {
	s := &Store{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[int]int, len(entries)),
	}
	prev := 0
	for _, e := range entries {
		if e.ID <= 0 {
			return nil, fmt.Errorf("catalog: entry %q has non-positive id %d", e.Name, e.ID)
		}
		if _, dup := s.index[e.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %d", e.ID)
		}
		if e.ID < prev {
			return nil, fmt.Errorf("catalog: id %d out of order after %d", e.ID, prev)
		}
		if !e.Status.Valid() {
			return nil, fmt.Errorf("%w: %q for id %d", ErrInvalidStatus, e.Status, e.ID)
		}
		prev = e.ID
		e = e.clone()
		e.setStatus(e.Status)
		s.index[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Clone returns an independent copy, used to give every session a fresh catalog.
func (s *Store) Clone() *Store {
	c := &Store{
		entries: make([]Entry, len(s.entries)),
		index:   make(map[int]int, len(s.index)),
	}
	for i, e := range s.entries {
		c.entries[i] = e.clone()
	}
	for id, i := range s.index {
		c.index[id] = i
	}
	return c
}

// List returns all entries in catalog order.
func (s *Store) List() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

func (s *Store) Len() int { return len(s.entries) }

// Find returns a copy of the entry with the given id.
func (s *Store) Find(id int) (Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// Index returns the position of id in catalog order.
func (s *Store) Index(id int) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Neighbor returns the id offset positions away from id in catalog order.
// It reports false when id is unknown or the move would leave the list.
func (s *Store) Neighbor(id, offset int) (int, bool) {
	i, ok := s.index[id]
	if !ok {
		return 0, false
	}
	j := i + offset
	if j < 0 || j >= len(s.entries) {
		return 0, false
	}
	return s.entries[j].ID, true
}

// First returns the id of the first entry, if any.
func (s *Store) First() (int, bool) {
	if len(s.entries) == 0 {
		return 0, false
	}
	return s.entries[0].ID, true
}

// SetStatus changes the status of one entry and keeps IsCaught and
// IsEncountered derived from it. Unknown ids return ErrNotFound.
func (s *Store) SetStatus(id int, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	s.entries[i].setStatus(status)
	return nil
}

// SeenCount counts encountered entries, owned ones included.
func (s *Store) SeenCount() int {
	n := 0
	for _, e := range s.entries {
		if e.IsEncountered {
			n++
		}
	}
	return n
}

func (s *Store) OwnedCount() int {
	n := 0
	for _, e := range s.entries {
		if e.IsCaught {
			n++
		}
	}
	return n
}

// Search matches term case-insensitively against name, types and category.
// A blank term returns the full list.
func (s *Store) Search(term string) []Entry {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List()
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := []Entry{}
	for _, e := range s.entries {
		if matches(fold, e, needle) {
			out = append(out, e.clone())
		}
	}
	return out
}

// SearchRevealed is Search for what a viewer may know: entries not yet
// encountered match only on their zero-padded number, never on hidden text.
func (s *Store) SearchRevealed(term string) []Entry {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List()
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := []Entry{}
	for _, e := range s.entries {
		hit := strings.Contains(fmt.Sprintf("%03d", e.ID), needle)
		if !hit && e.IsEncountered {
			hit = matches(fold, e, needle)
		}
		if hit {
			out = append(out, e.clone())
		}
	}
	return out
}

func matches(fold cases.Caser, e Entry, needle string) bool {
	if strings.Contains(fold.String(e.Name), needle) {
		return true
	}
	if strings.Contains(fold.String(e.Category), needle) {
		return true
	}
	for _, t := range e.Types {
		if strings.Contains(fold.String(t), needle) {
			return true
		}
	}
	return false
}
