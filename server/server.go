// Package server implements the TCP accept loop: connection-count
// admission control, bounded exponential backoff on transient accept
// errors, and shutdown fan-out to every handler it has spawned. It is
// grounded on the accept-loop/backoff shape common to the pack's network
// listeners, adapted to the mrun goroutine-lifecycle and mctx/mlog
// conventions used throughout this repo.
package server

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/mrun"
	"github.com/mediocregopher/tinyredis/store"
)

const (
	minBackoff = time.Second
	maxBackoff = 64 * time.Second
)

// Metrics is the subset of metrics.Metrics the server updates; defined here
// so this package doesn't depend on the concrete metrics type, only the
// handful of methods it calls.
type Metrics interface {
	ConnAccepted()
	ConnOpened()
	ConnClosed()
	CommandApplied(name string)
	PubSubDelivered(n int)
}

// Config holds the Server's operational knobs.
type Config struct {
	ListenAddr    string
	MaxConns      int
	AcceptPerSec  float64 // rate.Inf-equivalent if <= 0
	PubSubBufSize int
}

// Server owns a store.Db, a listener, and the permits gating simultaneous
// connections.
type Server struct {
	cfg     Config
	db      *store.Db
	logger  *mlog.Logger
	metrics Metrics

	sem     chan struct{}
	limiter *rate.Limiter

	shutdownCh chan struct{}
}

// New constructs a Server. db is expected to have been created (via
// store.New) against the same ctx that will later be passed to Run, so that
// mrun.Wait(ctx, ...) after Run returns also waits for the purge task.
func New(cfg Config, db *store.Db, logger *mlog.Logger, m Metrics) *Server {
	limit := rate.Inf
	if cfg.AcceptPerSec > 0 {
		limit = rate.Limit(cfg.AcceptPerSec)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 250
	}

	return &Server{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		metrics:    m,
		sem:        make(chan struct{}, maxConns),
		limiter:    rate.NewLimiter(limit, 1),
		shutdownCh: make(chan struct{}),
	}
}

// Run listens on cfg.ListenAddr and accepts connections until ctx is
// canceled, at which point it stops accepting, broadcasts shutdown to every
// live connection handler, and waits (bounded by shutdownGrace) for them to
// finish. It returns a non-nil error only for a bind failure or an accept
// error that isn't judged transient.
func (s *Server) Run(ctx context.Context, shutdownGrace time.Duration) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	closeOnce := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-closeOnce:
		}
	}()
	defer close(closeOnce)

	ctx = mctx.Annotate(ctx, "listenAddr", s.cfg.ListenAddr)
	s.logger.Info(ctx, "listening")

	acceptErr := s.acceptLoop(ctx, ln)

	close(s.shutdownCh)
	ln.Close()

	waitCh := make(chan error, 1)
	go func() { waitCh <- mrun.Wait(ctx, nil) }()

	select {
	case err := <-waitCh:
		if err != nil {
			s.logger.Warn(ctx, "a connection handler returned an error during shutdown", err)
		}
	case <-time.After(shutdownGrace):
		s.logger.Warn(ctx, "shutdown grace period elapsed with handlers still running", nil)
	}

	if ctx.Err() != nil {
		return nil
	}
	return acceptErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	backoff := minBackoff
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-s.sem
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				s.logger.Warn(ctx, "transient accept error, backing off", err)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			return err
		}
		backoff = minBackoff

		s.metrics.ConnAccepted()
		connCtx := mctx.NewChild(ctx, "conn")
		mrun.Track(ctx, connCtx)
		mrun.Thread(connCtx, func(cctx context.Context) error {
			defer func() { <-s.sem }()
			s.handleConn(cctx, conn)
			return nil
		})
	}
}
