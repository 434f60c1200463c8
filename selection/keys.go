package selection

import (
	"sort"
	"strings"
	"sync"
)

// Key is a navigation key understood by the controller.
type Key string

const (
	KeyUp     Key = "ArrowUp"
	KeyDown   Key = "ArrowDown"
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// ParseKey accepts browser KeyboardEvent.key names and the short terminal names.
func ParseKey(s string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arrowup", "up":
		return KeyUp, true
	case "arrowdown", "down":
		return KeyDown, true
	case "enter":
		return KeyEnter, true
	case "escape", "esc":
		return KeyEscape, true
	}
	return "", false
}

// HandleKey applies the keyboard contract: Up/Down step through the list,
// Enter opens the details overlay unless it is already open, Escape closes
// it only when open.
func (c *Controller) HandleKey(k Key) bool {
	switch k {
	case KeyUp:
		return c.SelectAdjacent(Previous)
	case KeyDown:
		return c.SelectAdjacent(Next)
	case KeyEnter:
		if c.overlayOpen {
			return false
		}
		return c.OpenDetails()
	case KeyEscape:
		if !c.overlayOpen {
			return false
		}
		return c.Close()
	}
	return false
}

// Bind registers the controller on kb and returns the function that removes it.
func (c *Controller) Bind(kb *Keyboard) (unbind func()) {
	return kb.Listen(c.HandleKey)
}

// Handler reacts to a key and reports whether it changed anything.
type Handler func(Key) bool

// Keyboard is the set of key listeners active while a surface is mounted.
type Keyboard struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Handler
}

func NewKeyboard() *Keyboard {
	return &Keyboard{listeners: map[int]Handler{}}
}

// Listen adds h and returns a function removing it. Calling the returned
// function more than once is harmless.
func (k *Keyboard) Listen(h Handler) (remove func()) {
	k.mu.Lock()
	id := k.nextID
	k.nextID++
	k.listeners[id] = h
	k.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.listeners, id)
			k.mu.Unlock()
		})
	}
}

// Dispatch delivers key to every listener in registration order.
func (k *Keyboard) Dispatch(key Key) bool {
	k.mu.Lock()
	order := make([]int, 0, len(k.listeners))
	for id := range k.listeners {
		order = append(order, id)
	}
	sort.Ints(order)
	handlers := make([]Handler, 0, len(order))
	for _, id := range order {
		handlers = append(handlers, k.listeners[id])
	}
	k.mu.Unlock()

	handled := false
	for _, h := range handlers {
		if h(key) {
			handled = true
		}
	}
	return handled
}

// Len returns the number of registered listeners.
func (k *Keyboard) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.listeners)
}
