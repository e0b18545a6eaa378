package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"pyrocache/envs"
	"pyrocache/internal/pyrocache"
	"pyrocache/internal/pyrocache/commands"
	"pyrocache/internal/pyrocache/server"
)

func main() {
	envs.LoadEnv()
	config := envs.Gets()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var options []pyrocache.Option
	if config.SnapshotBucket != "" {
		uploader, err := pyrocache.NewGCSUploader(ctx, config.SnapshotBucket, config.SnapshotObject)
		if err != nil {
			logger.Error("failed to create snapshot uploader", "error", err)
			os.Exit(1)
		}
		defer uploader.Close()
		options = append(options, pyrocache.WithUploader(uploader))
	}

	cache, err := pyrocache.InitializePyroCache(config, logger, options...)
	if err != nil {
		logger.Error("failed to initialize PyroCache", "error", err)
		os.Exit(1)
	}

	engine := commands.NewEngine(cache.Store(), commands.Options{
		Saver:      cache,
		Username:   config.AuthUsername,
		Password:   config.AuthPassword,
		DefaultTTL: config.DefaultTTLDuration(),
	})
	metrics := server.NewMetrics(cache.Store())
	dispatcher := server.NewDispatcher(engine, cache, metrics, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return cache.Start(ctx)
	})
	group.Go(func() error {
		return server.NewLineServer(":"+config.PyroPort, dispatcher, metrics, logger).ListenAndServe(ctx)
	})
	if config.RespAddr != "" {
		group.Go(func() error {
			return server.NewRespServer(config.RespAddr, dispatcher, metrics, logger).ListenAndServe(ctx)
		})
	}
	if config.HTTPAddr != "" {
		group.Go(func() error {
			return server.NewHTTPServer(config.HTTPAddr, dispatcher, metrics, logger).ListenAndServe(ctx)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("PyroCache stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("PyroCache stopped")
}
