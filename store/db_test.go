package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/mrun"
)

func newTestDb(t *testing.T) (*Db, context.Context) {
	ctx := context.Background()
	db := New(ctx, mlog.Null, nil, 0)
	t.Cleanup(func() {
		db.Shutdown()
		require.NoError(t, mrun.Wait(ctx, nil))
	})
	return db, ctx
}

func TestGetSet(t *testing.T) {
	db, _ := newTestDb(t)

	_, ok := db.Get("foo")
	assert.False(t, ok)

	db.Set("foo", []byte("bar"), 0)
	v, ok := db.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", string(v))
}

func TestSetOverwrite(t *testing.T) {
	db, _ := newTestDb(t)

	db.Set("foo", []byte("1"), 0)
	db.Set("foo", []byte("2"), 0)
	v, ok := db.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "2", string(v))
}

func TestExpiry(t *testing.T) {
	db, _ := newTestDb(t)

	db.Set("foo", []byte("bar"), 50*time.Millisecond)
	_, ok := db.Get("foo")
	assert.True(t, ok)

	time.Sleep(300 * time.Millisecond)
	_, ok = db.Get("foo")
	assert.False(t, ok, "entry should have been purged after its TTL elapsed")
}

func TestOverwriteClearsOldExpiration(t *testing.T) {
	db, _ := newTestDb(t)

	db.Set("foo", []byte("1"), 10*time.Millisecond)
	db.Set("foo", []byte("2"), 0) // no longer expires

	time.Sleep(100 * time.Millisecond)
	v, ok := db.Get("foo")
	require.True(t, ok, "overwriting with no TTL should cancel the prior expiration")
	assert.Equal(t, "2", string(v))
}

func TestPublishNoSubscribers(t *testing.T) {
	db, _ := newTestDb(t)
	assert.Equal(t, 0, db.Publish("chan", []byte("hi")))
}

func TestSubscribePublish(t *testing.T) {
	db, _ := newTestDb(t)

	ch, cancel := db.Subscribe("chan")
	defer cancel()

	n := db.Publish("chan", []byte("hi"))
	assert.Equal(t, 1, n)

	select {
	case msg := <-ch:
		assert.Equal(t, "hi", string(msg))
	case <-time.After(time.Second):
		t.Fatal("did not receive published message")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	db, _ := newTestDb(t)

	ch, cancel := db.Subscribe("chan")
	cancel()

	assert.Equal(t, 0, db.Publish("chan", []byte("hi")))
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should not have received anything after cancel")
	default:
	}
}

func TestShutdownStopsPurgeTask(t *testing.T) {
	ctx := context.Background()
	db := New(ctx, mlog.Null, nil, 0)
	db.Shutdown()
	assert.NoError(t, mrun.Wait(ctx, nil))
}
