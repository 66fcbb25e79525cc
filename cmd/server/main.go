// Command server runs the simulated market depth feed: per-instrument order
// books mutated by synthetic activity, streamed to WebSocket subscribers.
package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/marketfeed/params"
	"github.com/uhyunpark/marketfeed/pkg/api"
	"github.com/uhyunpark/marketfeed/pkg/hub"
	"github.com/uhyunpark/marketfeed/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var logger *zap.Logger
	var err error
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogLevel, cfg.LogFile)
	} else {
		logger, err = util.NewLogger(cfg.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	seed := cfg.Feed.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sugar.Infow("starting", "addr", cfg.Server.Addr, "symbols", cfg.Feed.Symbols, "seed", seed)

	h := hub.New(hub.Options{
		Symbols:           cfg.Feed.Symbols,
		TickInterval:      cfg.Feed.TickInterval,
		HeartbeatInterval: cfg.Feed.HeartbeatInterval,
		FallbackMid:       cfg.Feed.FallbackMid,
		Rng:               rand.New(rand.NewSource(seed)),
		Clock:             util.RealClock{},
		SeedBooks:         true,
		Log:               sugar,
	})

	server := api.NewServer(h, cfg.Feed.DefaultDepth, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return server.Start(ctx, cfg.Server.Addr) })

	if err := g.Wait(); err != nil {
		sugar.Fatalw("exited", "err", err)
	}
	sugar.Infow("shutdown_complete")
}
