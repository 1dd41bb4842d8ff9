package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/mediocregopher/tinyredis/command"
	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/resp"
	"github.com/mediocregopher/tinyredis/store"
)

type frameOrErr struct {
	frame resp.Frame
	err   error
}

// connHandler is the per-client loop: read frame, parse, apply, write
// response, repeat, until EOF, an I/O error, a malformed frame, or shutdown.
type connHandler struct {
	conn    net.Conn
	r       *resp.Reader
	w       *resp.Writer
	db      *store.Db
	logger  *mlog.Logger
	metrics Metrics
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ctx = mctx.Annotate(ctx, "remoteAddr", conn.RemoteAddr().String())

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	h := &connHandler{
		conn:    conn,
		r:       resp.NewReader(conn),
		w:       resp.NewWriter(conn),
		db:      s.db,
		logger:  s.logger,
		metrics: s.metrics,
	}
	h.run(ctx, s.shutdownCh)
}

// run is the outer per-connection loop (§4.5 step 2): race the next frame
// against shutdown, dispatch plain commands, and hand subscribe-family
// commands off to subscribeLoop until every channel is dropped.
func (h *connHandler) run(ctx context.Context, shutdownCh <-chan struct{}) {
	done := make(chan struct{})
	defer close(done)

	frameCh := make(chan frameOrErr)
	go func() {
		for {
			f, err := h.r.ReadFrame()
			select {
			case frameCh <- frameOrErr{f, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-shutdownCh:
			return
		case fe := <-frameCh:
			if fe.err != nil {
				h.logReadErr(ctx, fe.err)
				return
			}
			if !h.dispatch(ctx, fe.frame, frameCh, shutdownCh) {
				return
			}
		}
	}
}

func (h *connHandler) logReadErr(ctx context.Context, err error) {
	if errors.Is(err, io.EOF) {
		return
	}
	h.logger.Warn(ctx, "connection closed after read error", err)
}

// dispatch handles one already-read frame. It returns false if the
// connection should be closed.
func (h *connHandler) dispatch(ctx context.Context, f resp.Frame, frameCh <-chan frameOrErr, shutdownCh <-chan struct{}) bool {
	cmd, err := command.Parse(f)
	if err != nil {
		if errors.Is(err, resp.ErrParse) {
			h.logger.Warn(ctx, "closing connection after malformed frame", err)
			return false
		}
		if werr := h.w.WriteFrame(resp.NewError("ERR " + stripErrCommandPrefix(err.Error()))); werr != nil {
			return false
		}
		return true
	}

	if sub, ok := cmd.(command.Subscribe); ok {
		return h.subscribeLoop(ctx, sub, frameCh, shutdownCh)
	}
	if _, ok := cmd.(command.Unsubscribe); ok {
		h.w.WriteFrame(resp.NewError("ERR UNSUBSCRIBE is only valid within a subscription"))
		return true
	}

	if pub, ok := cmd.(command.Publish); ok {
		n := h.db.Publish(pub.Channel, pub.Message)
		h.metrics.CommandApplied(cmd.Name())
		h.metrics.PubSubDelivered(n)
		return h.w.WriteFrame(resp.NewInteger(int64(n))) == nil
	}

	respFrame := command.Apply(h.db, cmd)
	h.metrics.CommandApplied(cmd.Name())
	return h.w.WriteFrame(respFrame) == nil
}
