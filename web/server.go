package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"KantoPokedex/config"
	"KantoPokedex/server"
	"KantoPokedex/viewer"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFiles embed.FS

// StaticFS returns the embedded public assets.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// PokedexWebServer serves the viewer page, the JSON API and the websocket.
type PokedexWebServer struct {
	cfg       config.ServerConfig
	secure    bool
	log       *zap.Logger
	sessions  *viewer.Registry
	wsManager *server.WebSocketManager
	router    *mux.Router
	tmpl      *template.Template
	static    fs.FS

	mountsMu sync.Mutex
	mounts   map[string]func()
}

// NewPokedexWebServer wires the routes. static may be nil to use the
// embedded assets.
func NewPokedexWebServer(cfg *config.Config, sessions *viewer.Registry, static fs.FS, log *zap.Logger) (*PokedexWebServer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if static == nil {
		static = StaticFS()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &PokedexWebServer{
		cfg:      cfg.Server,
		secure:   cfg.Session.SecureCookie,
		log:      log,
		sessions: sessions,
		router:   mux.NewRouter(),
		tmpl:     tmpl,
		static:   static,
		mounts:   map[string]func(){},
	}
	s.wsManager = server.NewWebSocketManager(log, server.Hooks{
		Authorize:    s.authorizeSocket,
		OnConnect:    s.onSocketConnect,
		OnMessage:    s.onSocketMessage,
		OnDisconnect: s.onSocketDisconnect,
	})
	s.setupRoutes()
	return s, nil
}

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"join":   strings.Join,
		"percent": func(v int) int {
			if v < 0 {
				return 0
			}
			if v > 100 {
				return 100
			}
			return v
		},
	}
	return template.New("_root").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
}

// setupRoutes configures all HTTP routes
func (s *PokedexWebServer) setupRoutes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(requestLoggerMiddleware(s.log))
	s.router.Use(recoveryMiddleware(s.log))

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.wsManager.HandleWebSocket)

	// REST API endpoints
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware(s.cfg.AllowedOrigin))
	api.Use(s.sessionMiddleware)
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/entries", s.handleListEntries).Methods("GET")
	api.HandleFunc("/entries/{id:[0-9]+}", s.handleGetEntry).Methods("GET")
	api.HandleFunc("/entries/{id:[0-9]+}/status", s.handleSetStatus).Methods("PUT")
	api.HandleFunc("/selection/open", s.handleOpenDetails).Methods("POST")
	api.HandleFunc("/selection/close", s.handleCloseDetails).Methods("POST")
	api.HandleFunc("/selection/{direction:previous|next}", s.handleSelectAdjacent).Methods("POST")
	api.HandleFunc("/selection/{id:[0-9]+}", s.handleSelect).Methods("POST")
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handlePatchSettings).Methods("PATCH")
	api.HandleFunc("/settings/panel", s.handleTogglePanel).Methods("POST")
	api.HandleFunc("/audio/start", s.handleStartAudio).Methods("POST")
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")
	api.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Web interface, then static files; the page must win over a root base.
	s.router.Handle("/", s.sessionMiddleware(http.HandlerFunc(s.handleHomePage))).Methods("GET")
	base := strings.TrimRight(s.cfg.PublicBase, "/")
	s.router.PathPrefix(base + "/").Handler(http.StripPrefix(base+"/", s.assetHandler()))
}

// Handler exposes the router, mainly for tests.
func (s *PokedexWebServer) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *PokedexWebServer) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	s.wsManager.Start()
	defer s.wsManager.Stop()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("pokedex web server listening",
			zap.String("addr", s.cfg.Addr),
			zap.String("websocket", "/ws"),
			zap.String("api", "/api/"),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down web server")
	return srv.Shutdown(shutdownCtx)
}

// assetHandler serves static files and logs misses; a broken asset never
// takes the page down.
func (s *PokedexWebServer) assetHandler() http.Handler {
	files := http.FileServer(http.FS(s.static))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if _, err := fs.Stat(s.static, name); err != nil {
			s.log.Warn("asset load failed", zap.String("asset", name), zap.Error(err))
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
