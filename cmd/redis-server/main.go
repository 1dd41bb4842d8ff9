// Command redis-server runs the key/value server: it parses its CLI flags,
// starts the listener and (optionally) the metrics endpoint, and blocks until
// an interrupt signal triggers a bounded graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/mediocregopher/tinyredis/mcfg"
	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/merr"
	"github.com/mediocregopher/tinyredis/metrics"
	"github.com/mediocregopher/tinyredis/mrun"
	"github.com/mediocregopher/tinyredis/server"
	"github.com/mediocregopher/tinyredis/store"
)

const shutdownGrace = 10 * time.Second

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" {
			fmt.Println(versioninfo.Short())
			return
		}
	}

	ctx := mctx.NewChild(context.Background(), "redis-server")
	logger := mlog.NewLogger(os.Stderr)

	cfg := mcfg.New()
	listenAddr := mcfg.String(cfg, ctx, "listen-addr", "127.0.0.1:6379", "Address to listen for RESP connections on.")
	maxConns := mcfg.Int(cfg, ctx, "max-conns", 250, "Maximum number of simultaneous client connections.")
	acceptPerSec := mcfg.Float64(cfg, ctx, "accept-per-sec", 0, "Maximum new connections accepted per second (0 means unlimited).")
	pubSubBufSize := mcfg.Int(cfg, ctx, "pubsub-buf-size", 1024, "Per-subscriber pub/sub message buffer size.")
	logLevel := mcfg.String(cfg, ctx, "log-level", "info", "Minimum log level to print (debug, info, warn, error).")
	metricsAddr := mcfg.String(cfg, ctx, "metrics-addr", "", "Address to serve Prometheus metrics on (empty disables it).")

	if err := cfg.Populate(os.Args[1:]); err != nil {
		logger.Fatal(ctx, "populating configuration", err)
	}

	lvl, ok := mlog.LevelFromString(*logLevel)
	if !ok {
		logger.Fatal(ctx, "invalid log level", merr.New(ctx, fmt.Sprintf("unrecognized log level %q", *logLevel)))
	}
	logger.SetMaxLevel(lvl)

	m := metrics.New()
	db := store.New(ctx, logger, m.KeysExpired, *pubSubBufSize)

	srv := server.New(server.Config{
		ListenAddr:    *listenAddr,
		MaxConns:      *maxConns,
		AcceptPerSec:  *acceptPerSec,
		PubSubBufSize: *pubSubBufSize,
	}, db, logger, m)

	runCtx, cancel := context.WithCancel(ctx)

	if *metricsAddr != "" {
		metricsCtx := mctx.NewChild(runCtx, "metrics")
		mrun.Track(ctx, metricsCtx)
		mrun.Thread(metricsCtx, func(tctx context.Context) error {
			if err := m.ListenAndServe(tctx, logger, *metricsAddr); err != nil {
				logger.Error(tctx, "metrics server exited", merr.Wrap(tctx, err))
			}
			return nil
		})
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- srv.Run(runCtx, shutdownGrace) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	var runErr error
	select {
	case runErr = <-runErrCh:
		cancel()
	case sig := <-sigCh:
		logger.Info(mctx.Annotate(ctx, "signal", sig.String()), "signal received, shutting down")
		cancel()
		runErr = <-runErrCh
	}

	db.Shutdown()
	if err := mrun.Wait(ctx, nil); err != nil {
		logger.Warn(ctx, "error while waiting for background tasks to exit", err)
	}

	if runErr != nil {
		logger.Error(ctx, "server exited with error", merr.Wrap(ctx, runErr))
		os.Exit(1)
	}
	os.Exit(0)
}
