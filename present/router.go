// Package present decides what a viewer is allowed to see of an entry.
//
// Entries that have not been encountered are never rendered with their real
// data: the router replaces every textual field with a mask, whatever the
// store holds for them.
package present

import (
	"fmt"
	"html/template"
	"strings"

	"KantoPokedex/catalog"
	"KantoPokedex/settings"
)

// Kind is the visual used for the selected entry.
type Kind string

const (
	KindRedacted    Kind = "redacted"
	KindMedia       Kind = "special_media"
	KindPlaceholder Kind = "placeholder"
)

const (
	MaskedName = "----------"
	MaskedText = "???"
	// UnknownName is shown in the name plate when nothing is selected.
	UnknownName = "Unknown"
)

// Asset file names, relative to the public base path.
const (
	AssetPlaceholder  = "empty.png"
	AssetRedacted     = "unknown.png"
	AssetPokeball     = "pokeball.png"
	AssetPokeballOpen = "pokeball_white.png"
)

// Display carries the presentation toggles from settings.
type Display struct {
	Animations bool `json:"animations"`
	DarkMode   bool `json:"dark_mode"`
	Compact    bool `json:"compact"`
}

// View is everything a surface needs to draw the selected entry.
type View struct {
	Kind        Kind          `json:"kind"`
	ID          int           `json:"id,omitempty"`
	Number      string        `json:"number,omitempty"`
	Name        string        `json:"name"`
	Types       []string      `json:"types,omitempty"`
	Category    string        `json:"category"`
	Description template.HTML `json:"description"`
	Habitat     string        `json:"habitat"`
	Height      string        `json:"height"`
	Weight      string        `json:"weight"`
	Caught      bool          `json:"caught"`
	MediaURL    string        `json:"media_url,omitempty"`
	Image       string        `json:"image,omitempty"`
	Display     Display       `json:"display"`
}

// Row is one line of the catalog list.
type Row struct {
	ID     int    `json:"id"`
	Number string `json:"number,omitempty"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Status string `json:"status"`
}

// Router resolves entries into views. It is safe for concurrent use.
type Router struct {
	media    map[int]string
	base     string
	renderer *Renderer
}

// NewRouter builds a router. media maps entry ids to embeddable viewer URLs;
// base is the public path the static assets are served under.
func NewRouter(media map[int]string, base string) *Router {
	m := make(map[int]string, len(media))
	for id, u := range media {
		m[id] = u
	}
	return &Router{
		media:    m,
		base:     strings.TrimRight(base, "/"),
		renderer: NewRenderer(),
	}
}

// HasMedia reports whether id is on the special media allow-list.
func (r *Router) HasMedia(id int) bool {
	_, ok := r.media[id]
	return ok
}

// Asset returns the public URL of a static asset.
func (r *Router) Asset(name string) string {
	return r.base + "/" + name
}

// Resolve picks the visual for entry. A nil or unencountered entry is always
// redacted, including entries on the media allow-list.
func (r *Router) Resolve(entry *catalog.Entry, s settings.Settings) View {
	display := Display{Animations: s.Animations, DarkMode: s.DarkMode, Compact: s.Compact}

	if entry == nil {
		return View{
			Kind:        KindRedacted,
			Name:        UnknownName,
			Category:    MaskedText,
			Description: MaskedText,
			Habitat:     MaskedText,
			Height:      MaskedText,
			Weight:      MaskedText,
			Image:       r.Asset(AssetRedacted),
			Display:     display,
		}
	}

	if !entry.IsEncountered {
		return View{
			Kind:        KindRedacted,
			ID:          entry.ID,
			Number:      number(entry.ID, s),
			Name:        MaskedName,
			Category:    MaskedText,
			Description: MaskedText,
			Habitat:     MaskedText,
			Height:      MaskedText,
			Weight:      MaskedText,
			Image:       r.Asset(AssetRedacted),
			Display:     display,
		}
	}

	v := View{
		ID:          entry.ID,
		Number:      number(entry.ID, s),
		Name:        entry.Name,
		Types:       append([]string(nil), entry.Types...),
		Category:    orMasked(entry.Category),
		Description: r.renderer.Render(entry.Description),
		Habitat:     orMasked(entry.Habitat),
		Height:      orMasked(entry.Height),
		Weight:      orMasked(entry.Weight),
		Caught:      entry.IsCaught,
		Display:     display,
	}
	if v.Description == "" {
		v.Description = MaskedText
	}
	if u, ok := r.media[entry.ID]; ok {
		v.Kind = KindMedia
		v.MediaURL = u
		return v
	}
	v.Kind = KindPlaceholder
	v.Image = r.Asset(AssetPlaceholder)
	return v
}

// Row renders one list line with the same fog-of-war rule.
func (r *Router) Row(e catalog.Entry, s settings.Settings) Row {
	row := Row{
		ID:     e.ID,
		Number: number(e.ID, s),
		Name:   e.Name,
		Icon:   r.Asset(AssetPokeballOpen),
		Status: string(e.Status),
	}
	if e.IsCaught {
		row.Icon = r.Asset(AssetPokeball)
	}
	if !e.IsEncountered {
		row.Name = MaskedName
	}
	return row
}

// Rows renders a list of entries.
func (r *Router) Rows(entries []catalog.Entry, s settings.Settings) []Row {
	out := make([]Row, 0, len(entries))
	for _, e := range entries {
		out = append(out, r.Row(e, s))
	}
	return out
}

// Number formats an id the way the list shows it.
func Number(id int) string {
	return fmt.Sprintf("%03d", id)
}

func number(id int, s settings.Settings) string {
	if !s.ShowNumbers {
		return ""
	}
	return Number(id)
}

func orMasked(s string) string {
	if strings.TrimSpace(s) == "" {
		return MaskedText
	}
	return s
}
