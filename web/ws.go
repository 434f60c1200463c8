package web

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"KantoPokedex/selection"
	"KantoPokedex/server"
	"KantoPokedex/viewer"
)

// Inbound websocket message types.
const (
	msgKey          = "key"
	msgScroll       = "scroll"
	msgOutsideClick = "outside_click"
	msgGesture      = "gesture"
	msgSearch       = "search"
	msgSelect       = "select"

	msgScrollRestore = "scroll_restore"
	msgError         = "error"
)

type keyData struct {
	Key string `json:"key"`
}

type scrollData struct {
	Offset int `json:"offset"`
}

type outsideClickData struct {
	Target string `json:"target"`
}

type searchData struct {
	Query string `json:"query"`
}

type selectData struct {
	ID int `json:"id"`
}

func (s *PokedexWebServer) authorizeSocket(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return "", false
	}
	return sess.ID, true
}

// onSocketConnect mounts the session for this connection. Session events go
// straight to the client that mounted it.
func (s *PokedexWebServer) onSocketConnect(c *server.Client) {
	sess, ok := s.sessions.Get(c.SessionID)
	if !ok {
		return
	}
	unmount := sess.Mount(context.Background(), func(ev viewer.Event) {
		_ = c.Send(server.Message{Type: ev.Type, Data: ev.Data})
	})

	s.mountsMu.Lock()
	s.mounts[c.ID] = unmount
	s.mountsMu.Unlock()

	_ = c.Send(server.Message{Type: viewer.EventState, Data: sess.Render()})
}

func (s *PokedexWebServer) onSocketDisconnect(c *server.Client) {
	s.mountsMu.Lock()
	unmount, ok := s.mounts[c.ID]
	delete(s.mounts, c.ID)
	s.mountsMu.Unlock()
	if ok {
		unmount()
	}
}

func (s *PokedexWebServer) onSocketMessage(c *server.Client, msg server.Inbound) {
	sess, ok := s.sessions.Get(c.SessionID)
	if !ok {
		return
	}
	log := s.log.With(zap.String("session", sess.ID), zap.String("client", c.ID), zap.String("type", msg.Type))
	ctx := context.Background()

	changed := false
	switch msg.Type {
	case msgKey:
		var d keyData
		if !s.decodeData(c, log, msg, &d) {
			return
		}
		k, ok := selection.ParseKey(d.Key)
		if !ok {
			return
		}
		sess.Gesture(ctx)
		changed = sess.Key(k)

	case msgScroll:
		var d scrollData
		if !s.decodeData(c, log, msg, &d) {
			return
		}
		sess.SetScroll(d.Offset)

	case msgOutsideClick:
		var d outsideClickData
		if !s.decodeData(c, log, msg, &d) {
			return
		}
		sess.Gesture(ctx)
		changed = sess.OutsideClick(d.Target)

	case msgGesture:
		sess.Gesture(ctx)

	case msgSearch:
		var d searchData
		if !s.decodeData(c, log, msg, &d) {
			return
		}
		sess.Search(d.Query)
		changed = true

	case msgSelect:
		var d selectData
		if !s.decodeData(c, log, msg, &d) {
			return
		}
		sess.Gesture(ctx)
		if err := sess.Select(d.ID); err != nil {
			_ = c.Send(server.Message{Type: msgError, Data: err.Error()})
			return
		}
		changed = true

	default:
		log.Debug("unknown websocket message")
		return
	}

	if changed {
		s.pushState(sess, sess.Render())
	}
}

func (s *PokedexWebServer) decodeData(c *server.Client, log *zap.Logger, msg server.Inbound, v interface{}) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		log.Warn("malformed websocket message", zap.Error(err))
		_ = c.Send(server.Message{Type: msgError, Data: "malformed " + msg.Type + " message"})
		return false
	}
	return true
}
