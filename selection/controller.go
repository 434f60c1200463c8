package selection

import "KantoPokedex/catalog"

// Direction is a step through the catalog in list order.
type Direction int

const (
	Previous Direction = -1
	Next     Direction = 1
)

// Catalog is the part of the store the controller navigates.
type Catalog interface {
	Find(id int) (catalog.Entry, bool)
	Neighbor(id, offset int) (int, bool)
}

// Controller tracks the focused entry, the details overlay and the list
// scroll offset that has to survive opening and closing the overlay.
type Controller struct {
	catalog Catalog

	selected    int
	hasSelected bool
	overlayOpen bool

	scroll         int
	savedScroll    int
	restorePending bool
}

// NewController creates a controller with an optional initial selection.
// An initial id that is not in the catalog leaves the selection empty.
func NewController(c Catalog, initial int) *Controller {
	ctl := &Controller{catalog: c}
	if _, ok := c.Find(initial); ok {
		ctl.selected = initial
		ctl.hasSelected = true
	}
	return ctl
}

// Selected returns the focused id, if any.
func (c *Controller) Selected() (int, bool) {
	return c.selected, c.hasSelected
}

func (c *Controller) OverlayOpen() bool { return c.overlayOpen }

// Select focuses id and opens the details overlay, remembering where the
// list was scrolled to. Ids not in the catalog are ignored.
func (c *Controller) Select(id int) bool {
	if _, ok := c.catalog.Find(id); !ok {
		return false
	}
	c.selected = id
	c.hasSelected = true
	c.savedScroll = c.scroll
	c.overlayOpen = true
	return true
}

// SelectAdjacent moves the selection one step in list order. At either end
// of the list, or with nothing selected, it does nothing.
func (c *Controller) SelectAdjacent(d Direction) bool {
	if !c.hasSelected {
		return false
	}
	id, ok := c.catalog.Neighbor(c.selected, int(d))
	if !ok {
		return false
	}
	c.selected = id
	return true
}

// OpenDetails shows the overlay for the current selection.
func (c *Controller) OpenDetails() bool {
	if !c.hasSelected || c.overlayOpen {
		return false
	}
	c.savedScroll = c.scroll
	c.overlayOpen = true
	return true
}

// Close hides the overlay. The saved scroll offset is handed back on the
// next frame rather than immediately.
func (c *Controller) Close() bool {
	if !c.overlayOpen {
		return false
	}
	c.overlayOpen = false
	c.restorePending = true
	return true
}

// OutsideClick is called by the host when a click lands outside the overlay.
func (c *Controller) OutsideClick() bool {
	return c.Close()
}

// SetScroll records the list scroll offset reported by the host.
func (c *Controller) SetScroll(offset int) {
	if offset < 0 {
		offset = 0
	}
	c.scroll = offset
}

func (c *Controller) Scroll() int { return c.scroll }

// NextFrame applies a pending scroll restoration. It reports the offset to
// restore exactly once per Close.
func (c *Controller) NextFrame() (int, bool) {
	if !c.restorePending {
		return 0, false
	}
	c.restorePending = false
	c.scroll = c.savedScroll
	return c.scroll, true
}
