package web

import (
	"bytes"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"KantoPokedex/logging"
	"KantoPokedex/present"
	"KantoPokedex/viewer"
)

type pageData struct {
	State    viewer.State
	Base     string
	Pokeball string
	Opened   string
}

// Web Interface Handlers
func (s *PokedexWebServer) handleHomePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if query := r.URL.Query(); query.Has("q") {
		sess.Search(query.Get("q"))
	}
	data := pageData{
		State:    sess.Render(),
		Base:     strings.TrimRight(s.cfg.PublicBase, "/"),
		Pokeball: s.asset(present.AssetPokeball),
		Opened:   s.asset(present.AssetPokeballOpen),
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.tmpl", data); err != nil {
		logging.FromContext(r.Context()).Error("render page", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *PokedexWebServer) asset(name string) string {
	return strings.TrimRight(s.cfg.PublicBase, "/") + "/" + name
}
