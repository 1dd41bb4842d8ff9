package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/mediocregopher/tinyredis/resp"
)

// Parse decodes f (expected to be an Array frame whose first element is the
// command name) into a Command.
//
// An error wrapping resp.ErrParse means f itself was malformed in a way that
// should terminate the connection (not an Array, or an argument of the
// wrong Frame type for what the command expects). Any other error is a
// command-level error (wrapping ErrCommand) that should be reported to the
// client as a RESP Error frame, leaving the connection open.
func Parse(f resp.Frame) (Command, error) {
	cur, err := resp.NewCursor(f)
	if err != nil {
		return nil, err
	}

	rawName, err := cur.NextString()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("empty command")
		}
		return nil, err
	}
	name := strings.ToLower(rawName)

	switch name {
	case "ping":
		return parsePing(cur)
	case "get":
		return parseGet(cur)
	case "set":
		return parseSet(cur)
	case "publish":
		return parsePublish(cur)
	case "subscribe":
		return parseSubscribe(cur)
	case "unsubscribe":
		return parseUnsubscribe(cur)
	default:
		return Unknown{Raw: name}, nil
	}
}

func cmdErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrCommand}, args...)...)
}

func parsePing(cur *resp.Cursor) (Command, error) {
	if cur.Remaining() == 0 {
		return Ping{}, nil
	}
	arg, err := cur.NextBytes()
	if err != nil {
		return nil, err
	}
	if err := cur.Finish(); err != nil {
		return nil, cmdErrorf("'ping' takes at most one argument")
	}
	return Ping{Arg: arg, HasArg: true}, nil
}

func parseGet(cur *resp.Cursor) (Command, error) {
	key, err := cur.NextString()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("wrong number of arguments for 'get' command")
		}
		return nil, err
	}
	if err := cur.Finish(); err != nil {
		return nil, cmdErrorf("wrong number of arguments for 'get' command")
	}
	return Get{Key: key}, nil
}

func parseSet(cur *resp.Cursor) (Command, error) {
	key, err := cur.NextString()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("wrong number of arguments for 'set' command")
		}
		return nil, err
	}
	value, err := cur.NextBytes()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("wrong number of arguments for 'set' command")
		}
		return nil, err
	}

	set := Set{Key: key, Value: value}
	if cur.Remaining() > 0 {
		opt, err := cur.NextString()
		if err != nil {
			return nil, err
		}
		n, err := cur.NextInt()
		if err != nil {
			return nil, cmdErrorf("invalid expire time in 'set' command")
		}
		switch strings.ToUpper(opt) {
		case "EX":
			if n <= 0 {
				return nil, cmdErrorf("invalid expire time in 'set' command")
			}
			set.TTL, set.HasTTL = time.Duration(n)*time.Second, true
		case "PX":
			if n <= 0 {
				return nil, cmdErrorf("invalid expire time in 'set' command")
			}
			set.TTL, set.HasTTL = time.Duration(n)*time.Millisecond, true
		default:
			return nil, cmdErrorf("unsupported option %q for 'set' command", opt)
		}
	}
	if err := cur.Finish(); err != nil {
		return nil, cmdErrorf("syntax error in 'set' command")
	}
	return set, nil
}

func parsePublish(cur *resp.Cursor) (Command, error) {
	channel, err := cur.NextString()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("wrong number of arguments for 'publish' command")
		}
		return nil, err
	}
	message, err := cur.NextBytes()
	if err != nil {
		if err == resp.ErrEndOfStream {
			return nil, cmdErrorf("wrong number of arguments for 'publish' command")
		}
		return nil, err
	}
	if err := cur.Finish(); err != nil {
		return nil, cmdErrorf("wrong number of arguments for 'publish' command")
	}
	return Publish{Channel: channel, Message: message}, nil
}

func parseSubscribe(cur *resp.Cursor) (Command, error) {
	channels, err := remainingStrings(cur)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, cmdErrorf("wrong number of arguments for 'subscribe' command")
	}
	return Subscribe{Channels: channels}, nil
}

func parseUnsubscribe(cur *resp.Cursor) (Command, error) {
	channels, err := remainingStrings(cur)
	if err != nil {
		return nil, err
	}
	return Unsubscribe{Channels: channels}, nil
}

func remainingStrings(cur *resp.Cursor) ([]string, error) {
	out := make([]string, 0, cur.Remaining())
	for cur.Remaining() > 0 {
		s, err := cur.NextString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
