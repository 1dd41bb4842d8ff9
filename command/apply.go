package command

import (
	"fmt"

	"github.com/mediocregopher/tinyredis/resp"
	"github.com/mediocregopher/tinyredis/store"
)

// Apply executes a plain (non-subscribe-family) Command against db and
// returns the Frame to write back to the client. It panics if given a
// Subscribe or Unsubscribe command; callers must route those through their
// own subscribe-mode handling instead (see IsSubscribeFamily).
func Apply(db *store.Db, cmd Command) resp.Frame {
	switch c := cmd.(type) {
	case Ping:
		if c.HasArg {
			return resp.NewBulk(c.Arg)
		}
		return resp.NewSimple("PONG")

	case Get:
		v, ok := db.Get(c.Key)
		if !ok {
			return resp.NewNull()
		}
		return resp.NewBulk(v)

	case Set:
		db.Set(c.Key, c.Value, c.TTL)
		return resp.NewSimple("OK")

	case Publish:
		n := db.Publish(c.Channel, c.Message)
		return resp.NewInteger(int64(n))

	case Unknown:
		return resp.Errorf("ERR unknown command '%s'", c.Raw)

	default:
		panic(fmt.Sprintf("command: Apply called with subscribe-family command %T", cmd))
	}
}
