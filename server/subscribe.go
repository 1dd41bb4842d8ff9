package server

import (
	"context"
	"errors"
	"strings"

	"github.com/mediocregopher/tinyredis/command"
	"github.com/mediocregopher/tinyredis/resp"
)

func stripErrCommandPrefix(s string) string {
	return strings.TrimPrefix(s, "command error: ")
}

type subMsg struct {
	channel string
	payload []byte
}

type subscription struct {
	cancel func()
	stopCh chan struct{}
}

// subscribeLoop implements §4.4's subscribe mode: an initial Subscribe
// command enters it, then the connection multiplexes between channel
// messages, further inbound frames (further (un)subscribes or PING), and
// shutdown, until the last channel is dropped. It returns false if the
// connection should be closed outright (I/O error or malformed frame seen
// while inside subscribe mode, or shutdown).
func (h *connHandler) subscribeLoop(ctx context.Context, initial command.Subscribe, frameCh <-chan frameOrErr, shutdownCh <-chan struct{}) bool {
	subs := map[string]subscription{}
	aggCh := make(chan subMsg)

	defer func() {
		for _, s := range subs {
			close(s.stopCh)
			s.cancel()
		}
	}()

	addSub := func(channel string) {
		if _, ok := subs[channel]; ok {
			return
		}
		msgCh, cancel := h.db.Subscribe(channel)
		stopCh := make(chan struct{})
		subs[channel] = subscription{cancel: cancel, stopCh: stopCh}

		go func() {
			for {
				select {
				case payload, ok := <-msgCh:
					if !ok {
						return
					}
					select {
					case aggCh <- subMsg{channel: channel, payload: payload}:
					case <-stopCh:
						return
					}
				case <-stopCh:
					return
				}
			}
		}()
	}

	removeSub := func(channel string) {
		if s, ok := subs[channel]; ok {
			close(s.stopCh)
			s.cancel()
			delete(subs, channel)
		}
	}

	ackSubscribe := func(channel string) bool {
		return h.w.WriteFrame(resp.NewArray(
			resp.NewBulkString("subscribe"),
			resp.NewBulkString(channel),
			resp.NewInteger(int64(len(subs))),
		)) == nil
	}
	ackUnsubscribe := func(channel string) bool {
		return h.w.WriteFrame(resp.NewArray(
			resp.NewBulkString("unsubscribe"),
			resp.NewBulkString(channel),
			resp.NewInteger(int64(len(subs))),
		)) == nil
	}

	for _, ch := range initial.Channels {
		addSub(ch)
		if !ackSubscribe(ch) {
			return false
		}
	}

	for {
		select {
		case <-shutdownCh:
			return false

		case m := <-aggCh:
			if _, stillSubscribed := subs[m.channel]; !stillSubscribed {
				continue
			}
			h.metrics.CommandApplied("message")
			if h.w.WriteFrame(resp.NewArray(
				resp.NewBulkString("message"),
				resp.NewBulkString(m.channel),
				resp.NewBulk(m.payload),
			)) != nil {
				return false
			}

		case fe := <-frameCh:
			if fe.err != nil {
				h.logReadErr(ctx, fe.err)
				return false
			}

			cmd, err := command.Parse(fe.frame)
			if err != nil {
				if errors.Is(err, resp.ErrParse) {
					h.logger.Warn(ctx, "closing connection after malformed frame", err)
					return false
				}
				if werr := h.w.WriteFrame(resp.NewError(
					"ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING are allowed in this context",
				)); werr != nil {
					return false
				}
				continue
			}

			switch c := cmd.(type) {
			case command.Subscribe:
				for _, ch := range c.Channels {
					addSub(ch)
					if !ackSubscribe(ch) {
						return false
					}
				}

			case command.Unsubscribe:
				chans := c.Channels
				if len(chans) == 0 {
					chans = make([]string, 0, len(subs))
					for ch := range subs {
						chans = append(chans, ch)
					}
				}
				for _, ch := range chans {
					removeSub(ch)
					if !ackUnsubscribe(ch) {
						return false
					}
				}
				if len(subs) == 0 {
					return true
				}

			case command.Ping:
				var f resp.Frame
				if c.HasArg {
					f = resp.NewBulk(c.Arg)
				} else {
					f = resp.NewSimple("PONG")
				}
				if h.w.WriteFrame(f) != nil {
					return false
				}

			default:
				if h.w.WriteFrame(resp.NewError(
					"ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING are allowed in this context",
				)) != nil {
					return false
				}
			}
		}
	}
}
