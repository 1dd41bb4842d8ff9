// Package store implements the shared, in-memory key/value state: a
// thread-safe map of string keys to byte-blob entries with optional
// expiration, a background purge task that evicts expired entries, and a
// pub/sub channel registry. It is grounded on the Db/Shared/State split of
// the mini-redis reference implementation, adapted from tokio tasks and a
// BTreeMap expiration index to goroutines and a container/heap index.
package store

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/mediocregopher/tinyredis/mctx"
	"github.com/mediocregopher/tinyredis/mlog"
	"github.com/mediocregopher/tinyredis/mrun"
)

// entry is a stored value plus the bookkeeping needed to keep it consistent
// with the expiration index.
type entry struct {
	id      uint64
	data    []byte
	expItem *expItem // nil if the entry has no expiration
}

// Db is the shared, mutex-guarded key/value and pub/sub state. A Db is
// created once per server and handed to every connection and to its own
// background purge goroutine; nothing about it requires more than one
// instance per process.
type Db struct {
	logger        *mlog.Logger
	onPurge       func(n int)
	pubSubBufSize int

	mu       sync.Mutex
	entries  map[string]*entry
	pubsub   map[string]*broadcaster
	exp      expHeap
	nextID   uint64
	shutdown bool

	notifyCh chan struct{}
}

// New creates a Db and spawns its background purge task as an mrun.Thread
// tracked under ctx, so a later mrun.Wait(ctx, ...) blocks until the purge
// task has exited. Call Shutdown to stop the purge task.
//
// onPurge, if non-nil, is called after each purge pass that evicted at least
// one entry, with the number of entries it evicted; it exists so callers can wire eviction
// counts into metrics without this package depending on a metrics library.
// pubSubBufSize overrides each channel's broadcast buffer capacity; 0 means
// the default of 1024.
func New(ctx context.Context, logger *mlog.Logger, onPurge func(n int), pubSubBufSize int) *Db {
	db := &Db{
		logger:        logger,
		onPurge:       onPurge,
		pubSubBufSize: pubSubBufSize,
		entries:       map[string]*entry{},
		pubsub:        map[string]*broadcaster{},
		notifyCh:      make(chan struct{}, 1),
	}

	purgeCtx := mctx.NewChild(ctx, "purge")
	mrun.Track(ctx, purgeCtx)
	mrun.Thread(purgeCtx, db.purgeLoop)

	return db
}

func (db *Db) notify() {
	select {
	case db.notifyCh <- struct{}{}:
	default:
	}
}

// Get returns the current value of key, and whether it was present at the
// moment of the call. Expiry is not checked here: an entry whose TTL has
// elapsed is still returned until the purge task has removed it.
func (db *Db) Get(key string) ([]byte, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.entries[key]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Set assigns value to key, replacing any prior value. If ttl is positive
// the entry expires ttl after now; a zero or negative ttl means no
// expiration.
func (db *Db) Set(key string, value []byte, ttl time.Duration) {
	db.mu.Lock()

	id := db.nextID
	db.nextID++

	var item *expItem
	var notify bool
	if ttl > 0 {
		when := time.Now().Add(ttl)
		if db.exp.Len() > 0 {
			notify = when.Before(db.exp[0].when)
		} else {
			notify = true
		}
		item = &expItem{when: when, id: id, key: key}
		heap.Push(&db.exp, item)
	}

	newEntry := &entry{id: id, data: value, expItem: item}
	prev, had := db.entries[key]
	db.entries[key] = newEntry
	if had && prev.expItem != nil {
		heap.Remove(&db.exp, prev.expItem.index)
	}

	db.mu.Unlock()

	if notify {
		db.notify()
	}
}

// Subscribe returns a receive-only channel of messages published to
// channel, and a cancel function that must be called once the subscriber is
// done (typically via defer) to release it from the broadcaster.
func (db *Db) Subscribe(channel string) (<-chan []byte, func()) {
	db.mu.Lock()
	b, ok := db.pubsub[channel]
	if !ok {
		b = newBroadcaster(db.pubSubBufSize)
		db.pubsub[channel] = b
	}
	db.mu.Unlock()

	return b.subscribe()
}

// Publish sends value to every current subscriber of channel and returns
// how many subscribers it was delivered to (0 if the channel has none).
func (db *Db) Publish(channel string, value []byte) int {
	db.mu.Lock()
	b, ok := db.pubsub[channel]
	db.mu.Unlock()
	if !ok {
		return 0
	}
	return b.publish(value)
}

// Shutdown marks the Db as shutting down and wakes the purge task so it can
// observe the flag and exit. It does not wait for the purge task to finish;
// pair it with mrun.Wait on the Context the Db was created with for that.
func (db *Db) Shutdown() {
	db.mu.Lock()
	db.shutdown = true
	db.mu.Unlock()
	db.notify()
}

// purgeExpired removes every entry whose expiration is at or before now. It
// returns the instant the next entry (if any) expires at, and whether the Db
// has been told to shut down.
func (db *Db) purgeExpired() (time.Time, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.shutdown {
		return time.Time{}, true
	}

	now := time.Now()
	purged := 0
	for db.exp.Len() > 0 {
		item := db.exp[0]
		if item.when.After(now) {
			break
		}
		if e, ok := db.entries[item.key]; ok && e.expItem == item {
			delete(db.entries, item.key)
			purged++
		}
		heap.Pop(&db.exp)
	}

	if purged > 0 && db.onPurge != nil {
		db.onPurge(purged)
	}
	if db.exp.Len() > 0 {
		return db.exp[0].when, false
	}
	return time.Time{}, false
}

// purgeLoop is the background task: repeatedly purge expired entries, then
// sleep until the next expiration or until woken by a Set/Shutdown call.
func (db *Db) purgeLoop(ctx context.Context) error {
	for {
		next, shutdown := db.purgeExpired()
		if shutdown {
			db.logger.Debug(ctx, "purge task shut down")
			return nil
		}

		if next.IsZero() {
			select {
			case <-db.notifyCh:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-db.notifyCh:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}
