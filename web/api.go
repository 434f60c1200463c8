package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"KantoPokedex/catalog"
	"KantoPokedex/logging"
	"KantoPokedex/present"
	"KantoPokedex/selection"
	"KantoPokedex/server"
	"KantoPokedex/settings"
	"KantoPokedex/viewer"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps catalog errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "Pokemon not found")
	case errors.Is(err, catalog.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil
}

type entriesResponse struct {
	Query  string        `json:"query"`
	Count  int           `json:"count"`
	Rows   []present.Row `json:"rows"`
	Counts viewer.Counts `json:"counts"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	ID     int            `json:"id"`
	Status catalog.Status `json:"status"`
	Counts viewer.Counts  `json:"counts"`
}

func (s *PokedexWebServer) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Render())
}

func (s *PokedexWebServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	rows := sess.Filter(q)
	writeJSON(w, http.StatusOK, entriesResponse{
		Query:  q,
		Count:  len(rows),
		Rows:   rows,
		Counts: sess.Counts(),
	})
}

func (s *PokedexWebServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid Pokemon ID")
		return
	}
	view, err := sessionFrom(r.Context()).Entry(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *PokedexWebServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid Pokemon ID")
		return
	}
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := catalog.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	counts, err := sess.SetStatus(id, status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.pushState(sess, sess.Render())
	writeJSON(w, http.StatusOK, statusResponse{ID: id, Status: status, Counts: counts})
}

func (s *PokedexWebServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid Pokemon ID")
		return
	}
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	if err := sess.Select(id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.respondState(w, sess)
}

func (s *PokedexWebServer) handleSelectAdjacent(w http.ResponseWriter, r *http.Request) {
	d := selection.Next
	if mux.Vars(r)["direction"] == "previous" {
		d = selection.Previous
	}
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	sess.SelectAdjacent(d)
	s.respondState(w, sess)
}

func (s *PokedexWebServer) handleOpenDetails(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	sess.OpenDetails()
	s.respondState(w, sess)
}

func (s *PokedexWebServer) handleCloseDetails(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	sess.CloseDetails()
	s.respondState(w, sess)
}

func (s *PokedexWebServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Settings())
}

func (s *PokedexWebServer) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	cur := sess.UpdateSettings(r.Context(), patch)
	s.pushState(sess, sess.Render())
	writeJSON(w, http.StatusOK, cur)
}

func (s *PokedexWebServer) handleTogglePanel(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	open := sess.TogglePanel()
	s.pushState(sess, sess.Render())
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

func (s *PokedexWebServer) handleStartAudio(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Gesture(r.Context())
	sess.StartAudio(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"playing": sess.AudioPlaying()})
}

func (s *PokedexWebServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	st := sess.Snapshot()
	status := map[string]interface{}{
		"sessions":          s.sessions.Len(),
		"websocket_clients": s.wsManager.GetClientCount(),
		"session":           sess.ID,
		"mounted":           sess.Mounted(),
		"loaded":            st.Loaded,
		"progress":          st.Progress,
		"audio_playing":     sess.AudioPlaying(),
		"counts":            st.Counts,
		"last_updated":      time.Now(),
	}
	writeJSON(w, http.StatusOK, status)
}

// respondState renders once and sends the result to the caller and to every
// websocket of the session, so a pending scroll restore reaches both.
func (s *PokedexWebServer) respondState(w http.ResponseWriter, sess *viewer.Session) {
	st := sess.Render()
	s.pushState(sess, st)
	writeJSON(w, http.StatusOK, st)
}

func (s *PokedexWebServer) pushState(sess *viewer.Session, st viewer.State) {
	s.wsManager.SendToSession(sess.ID, server.Message{Type: viewer.EventState, Data: st})
	if st.RestoreScroll != nil {
		s.wsManager.SendToSession(sess.ID, server.Message{Type: msgScrollRestore, Data: *st.RestoreScroll})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}
