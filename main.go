// Command KantoPokedex serves the Kanto Pokédex viewer over HTTP, or runs it
// in the terminal with -tui.
//
// Configuration comes from CONFIG_PATH (or ./config.yaml) and POKEDEX_*
// environment variables; see package config.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"KantoPokedex/audio"
	"KantoPokedex/catalog"
	"KantoPokedex/config"
	"KantoPokedex/loading"
	"KantoPokedex/logging"
	"KantoPokedex/present"
	"KantoPokedex/tui"
	"KantoPokedex/viewer"
	"KantoPokedex/web"
)

func main() {
	tuiFlag := flag.Bool("tui", false, "run the viewer in the terminal instead of serving it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// The terminal UI owns stdout.
	logger := zap.NewNop()
	if !*tuiFlag {
		logger, err = logging.NewLogger(cfg.Log.Level)
		if err != nil {
			log.Fatalf("init logger: %v", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	seed, err := catalog.LoadSeed(cfg.Catalog.SeedPath)
	if err != nil {
		logger.Fatal("load catalog seed", zap.String("path", cfg.Catalog.SeedPath), zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("entries", seed.Store.Len()),
		zap.Int("seen", seed.Store.SeenCount()),
		zap.Int("owned", seed.Store.OwnedCount()),
	)

	static := web.StaticFS()
	track, err := audio.Probe(static, cfg.Audio.Track)
	if err != nil {
		logger.Warn("background track unavailable, audio disabled", zap.Error(err))
		track = nil
	}

	base := strings.TrimRight(cfg.Server.PublicBase, "/")
	deps := viewer.Deps{
		Seed:   seed,
		Router: present.NewRouter(seed.Media, base),
		Loading: loading.Config{
			Interval: cfg.Loading.Interval,
			MinStep:  cfg.Loading.MinStep,
			MaxStep:  cfg.Loading.MaxStep,
		},
		Track:    track,
		TrackURL: base + "/" + cfg.Audio.Track,
		Log:      logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *tuiFlag {
		sess := viewer.NewSession("terminal", deps)
		defer sess.Close()
		if err := tui.Run(ctx, sess); err != nil {
			log.Fatalf("terminal ui: %v", err)
		}
		return
	}

	sessions := viewer.NewRegistry(deps, cfg.Session.TTL)
	defer sessions.CloseAll()
	go sessions.RunSweeper(ctx, cfg.Session.SweepInterval)

	server, err := web.NewPokedexWebServer(cfg, sessions, static, logger)
	if err != nil {
		logger.Fatal("init web server", zap.Error(err))
	}
	if err := server.Start(ctx, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("web server stopped", zap.Error(err))
		os.Exit(1)
	}
}
