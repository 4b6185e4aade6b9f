package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/snapshare/advertise"
	"github.com/moyoez/snapshare/api"
	"github.com/moyoez/snapshare/eventbus"
	"github.com/moyoez/snapshare/p2p"
	"github.com/moyoez/snapshare/presence"
	"github.com/moyoez/snapshare/store"
	"github.com/moyoez/snapshare/stream"
	"github.com/moyoez/snapshare/tool"
	"github.com/moyoez/snapshare/transfer"
)

func main() {
	flags := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(flags.Log)

	cfg, err := tool.LoadConfig(flags.ConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlags(&cfg, flags)

	shared, err := store.New(cfg.SharedDir)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.DefaultLogger.Infof("Sharing files from %s", shared.Dir())

	registry := presence.NewRegistry(
		presence.WithTTL(cfg.PresenceTTL),
		presence.WithQueueCapacity(cfg.QueueCapacity),
	)
	if cfg.KeepaliveInterval >= registry.TTL() {
		tool.DefaultLogger.Warnf("keepaliveInterval %s is not below presenceTTL %s, idle streams will drop out of device lists", cfg.KeepaliveInterval, registry.TTL())
	}
	bus := eventbus.New(registry)
	router := transfer.NewRouter(shared, registry, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go presence.NewReaper(registry, bus, cfg.ReaperInterval).Run(ctx)

	if cfg.WatchSharedDir {
		go func() {
			if err := shared.Watch(ctx, store.DefaultDebounce, router.SharedChanged); err != nil {
				tool.DefaultLogger.Warnf("[Store] Not watching shared dir: %v", err)
			}
		}()
	}
	if cfg.MDNS {
		go func() {
			if err := advertise.Run(ctx, cfg.Port, tool.LANURL(cfg.Port)); err != nil {
				tool.DefaultLogger.Warnf("[mDNS] %v", err)
			}
		}()
	}

	server := api.NewServer(cfg, api.Deps{
		Registry: registry,
		Streamer: stream.NewStreamer(registry, bus, cfg.KeepaliveInterval),
		Router:   router,
		Rooms:    p2p.NewRooms(p2p.DefaultIdleTTL),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	case <-ctx.Done():
		tool.DefaultLogger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Errorf("Shutdown: %v", err)
	}
}
