// Package command parses RESP Array frames into the six supported commands
// and applies the plain (non-subscribe) ones against a store.Db. It is
// grounded on the cmd.rs command enum of the mini-redis reference
// implementation, reworked as a small tagged interface per the "dynamic
// command dispatch" note: one struct per command, Name identifying which.
package command

import (
	"errors"
	"time"
)

// Command is implemented by every parsed command variant.
type Command interface {
	Name() string
}

// Ping is "PING [message]".
type Ping struct {
	Arg    []byte
	HasArg bool
}

// Name implements Command.
func (Ping) Name() string { return "ping" }

// Get is "GET key".
type Get struct {
	Key string
}

// Name implements Command.
func (Get) Name() string { return "get" }

// Set is "SET key value [EX seconds | PX milliseconds]".
type Set struct {
	Key    string
	Value  []byte
	TTL    time.Duration
	HasTTL bool
}

// Name implements Command.
func (Set) Name() string { return "set" }

// Publish is "PUBLISH channel message".
//
// Name reports "publish", not the "pub" the mini-redis reference
// implementation's get_name returns for this command — see DESIGN.md for
// why that divergence was normalized away rather than preserved.
type Publish struct {
	Channel string
	Message []byte
}

// Name implements Command.
func (Publish) Name() string { return "publish" }

// Subscribe is "SUBSCRIBE channel [channel ...]". It is handled specially by
// the connection handler rather than through Apply, since entering
// subscribe mode requires access to the connection's own state.
type Subscribe struct {
	Channels []string
}

// Name implements Command.
func (Subscribe) Name() string { return "subscribe" }

// Unsubscribe is "UNSUBSCRIBE [channel ...]"; an empty Channels means "all
// currently subscribed channels". Like Subscribe, it's only meaningful
// inside the connection handler's subscribe-mode loop.
type Unsubscribe struct {
	Channels []string
}

// Name implements Command.
func (Unsubscribe) Name() string { return "unsubscribe" }

// Unknown is any command name not in the supported set.
type Unknown struct {
	Raw string
}

// Name implements Command.
func (Unknown) Name() string { return "unknown" }

// ErrCommand marks a command-level error (wrong arity, bad EX/PX argument,
// an unrecognized SET option, and the like): it is reported to the client
// as a RESP Error frame and the connection stays open. Errors from parsing
// that are instead wrapped in resp.ErrParse indicate a malformed frame and
// should terminate the connection; see Parse.
var ErrCommand = errors.New("command error")

// IsSubscribeFamily reports whether cmd must be routed to the connection's
// subscribe-mode handling rather than through Apply.
func IsSubscribeFamily(cmd Command) bool {
	switch cmd.(type) {
	case Subscribe, Unsubscribe:
		return true
	default:
		return false
	}
}
