package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/mrun"
	"github.com/mediocregopher/tinyredis/resp"
	"github.com/mediocregopher/tinyredis/store"
)

func array(elems ...resp.Frame) resp.Frame { return resp.NewArray(elems...) }
func bulk(s string) resp.Frame             { return resp.NewBulkString(s) }

func newTestDb(t *testing.T) *store.Db {
	ctx := context.Background()
	db := store.New(ctx, mlog.Null, nil, 0)
	t.Cleanup(func() {
		db.Shutdown()
		require.NoError(t, mrun.Wait(ctx, nil))
	})
	return db
}

func TestParsePing(t *testing.T) {
	cmd, err := Parse(array(bulk("PING")))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, cmd)

	cmd, err = Parse(array(bulk("ping"), bulk("hello")))
	require.NoError(t, err)
	assert.Equal(t, Ping{Arg: []byte("hello"), HasArg: true}, cmd)
}

func TestParseGet(t *testing.T) {
	cmd, err := Parse(array(bulk("GET"), bulk("foo")))
	require.NoError(t, err)
	assert.Equal(t, Get{Key: "foo"}, cmd)

	_, err = Parse(array(bulk("GET")))
	assert.True(t, errors.Is(err, ErrCommand))
}

func TestParseSet(t *testing.T) {
	cmd, err := Parse(array(bulk("SET"), bulk("k"), bulk("v")))
	require.NoError(t, err)
	assert.Equal(t, Set{Key: "k", Value: []byte("v")}, cmd)

	cmd, err = Parse(array(bulk("SET"), bulk("k"), bulk("v"), bulk("EX"), bulk("10")))
	require.NoError(t, err)
	set := cmd.(Set)
	assert.True(t, set.HasTTL)
	assert.Equal(t, 10*time.Second, set.TTL)

	cmd, err = Parse(array(bulk("SET"), bulk("k"), bulk("v"), bulk("PX"), bulk("500")))
	require.NoError(t, err)
	set = cmd.(Set)
	assert.Equal(t, 500*time.Millisecond, set.TTL)
}

func TestParseSetRejectsNonPositiveTTL(t *testing.T) {
	_, err := Parse(array(bulk("SET"), bulk("k"), bulk("v"), bulk("EX"), bulk("0")))
	assert.True(t, errors.Is(err, ErrCommand))

	_, err = Parse(array(bulk("SET"), bulk("k"), bulk("v"), bulk("EX"), bulk("-1")))
	assert.True(t, errors.Is(err, ErrCommand))
}

func TestParsePublish(t *testing.T) {
	cmd, err := Parse(array(bulk("PUBLISH"), bulk("ch"), bulk("hi")))
	require.NoError(t, err)
	assert.Equal(t, Publish{Channel: "ch", Message: []byte("hi")}, cmd)
}

func TestParseSubscribeRequiresChannel(t *testing.T) {
	_, err := Parse(array(bulk("SUBSCRIBE")))
	assert.True(t, errors.Is(err, ErrCommand))

	cmd, err := Parse(array(bulk("SUBSCRIBE"), bulk("a"), bulk("b")))
	require.NoError(t, err)
	assert.Equal(t, Subscribe{Channels: []string{"a", "b"}}, cmd)
}

func TestParseUnsubscribeAllowsEmpty(t *testing.T) {
	cmd, err := Parse(array(bulk("UNSUBSCRIBE")))
	require.NoError(t, err)
	assert.Equal(t, Unsubscribe{Channels: []string{}}, cmd)
}

func TestParseUnknownCommand(t *testing.T) {
	cmd, err := Parse(array(bulk("FOO")))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Raw: "foo"}, cmd)
}

func TestParseNonArrayIsParseError(t *testing.T) {
	_, err := Parse(resp.NewSimple("PING"))
	assert.True(t, errors.Is(err, resp.ErrParse))
}

func TestApplyPingPong(t *testing.T) {
	db := newTestDb(t)
	f := Apply(db, Ping{})
	assert.Equal(t, resp.NewSimple("PONG"), f)
}

func TestApplyGetSet(t *testing.T) {
	db := newTestDb(t)

	f := Apply(db, Get{Key: "missing"})
	assert.Equal(t, resp.NewNull(), f)

	f = Apply(db, Set{Key: "k", Value: []byte("v")})
	assert.Equal(t, resp.NewSimple("OK"), f)

	f = Apply(db, Get{Key: "k"})
	assert.Equal(t, resp.NewBulk([]byte("v")), f)
}

func TestApplyUnknown(t *testing.T) {
	db := newTestDb(t)
	f := Apply(db, Unknown{Raw: "foo"})
	assert.Equal(t, resp.NewError("ERR unknown command 'foo'"), f)
}

func TestApplyPublishNoSubscribers(t *testing.T) {
	db := newTestDb(t)
	f := Apply(db, Publish{Channel: "ch", Message: []byte("hi")})
	assert.Equal(t, resp.NewInteger(0), f)
}

func TestApplyPanicsOnSubscribeFamily(t *testing.T) {
	db := newTestDb(t)
	assert.Panics(t, func() { Apply(db, Subscribe{Channels: []string{"a"}}) })
}
