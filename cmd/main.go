package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chenBenjamin97/shot-analyzer/pkg/api"
	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/emitter"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/session"
	"github.com/chenBenjamin97/shot-analyzer/pkg/store"
	"github.com/chenBenjamin97/shot-analyzer/pkg/utils"
	"github.com/chenBenjamin97/shot-analyzer/pkg/video"
)

//loopQueue is how many session commands may wait for the loop goroutine
const loopQueue = 64

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error: Could not load configuration, got '%v'", err)
	}

	if err := utils.EnsureDirs(cfg.Directory.Root, cfg.Directory.Source, filepath.Dir(cfg.Store.Path)); err != nil {
		log.Fatalf("Error: Got '%v'", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Error: Got '%v'", err)
	}
	defer st.Close()

	o := game.New(game.ConfigFrom(cfg))
	o.Observe(func(next, prev session.State) {
		log.Printf("Session: %v -> %v", prev, next)
	})
	o.OnShot(func(r game.ShotRecord) {
		log.Printf("Session: Shot #%d of '%s': %v", r.Index, r.SessionID, r.Metrics.Outcome)
	})
	st.Listen(o)

	loop := game.NewLoop(o, loopQueue)
	srv := api.NewServer(cfg, loop, st, func(ctx context.Context, videoPath string) error {
		return video.Analyze(ctx, videoPath, loop, cfg.Detector)
	})

	if cfg.MQTT.Broker != "" {
		publisher := emitter.NewPublisher(cfg.MQTT)
		if err := publisher.Connect(ctx); err != nil {
			log.Printf("Error: MQTT publishing disabled, got '%v'", err)
		} else {
			defer publisher.Disconnect()
			publisher.Listen(o)
			go publisher.Run(ctx)
			srv.SetPublisher(publisher)
		}
	}

	go loop.Run(ctx)

	r := srv.SetRouter()
	go func() {
		if err := r.Run(":" + cfg.HTTP.Port); err != nil {
			log.Fatalf("Error: Got '%v'", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")
}
