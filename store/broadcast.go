package store

import "sync"

// defaultPubSubBufferSize is the capacity of each subscriber's message
// channel used when a Db isn't given an explicit size. A message sits in a
// slow subscriber's channel until it's received or gets pushed out by a
// newer message; it never blocks the publisher.
const defaultPubSubBufferSize = 1024

// broadcaster fans a channel's published messages out to every current
// subscriber, standing in for the capacity-1024 tokio::sync::broadcast
// sender the original keeps one of per pub/sub channel.
type broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]chan []byte
	nextID  uint64
	bufSize int
}

func newBroadcaster(bufSize int) *broadcaster {
	if bufSize <= 0 {
		bufSize = defaultPubSubBufferSize
	}
	return &broadcaster{subs: map[uint64]chan []byte{}, bufSize: bufSize}
}

// subscribe registers a new subscriber and returns its receive channel and a
// cancel function to deregister it. The channel is never closed by the
// broadcaster; only cancel removes it.
func (b *broadcaster) subscribe() (ch <-chan []byte, cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	c := make(chan []byte, b.bufSize)
	b.subs[id] = c
	b.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	return c, cancel
}

// publish delivers msg to every current subscriber, dropping the oldest
// buffered message for any subscriber whose channel is full rather than
// blocking. It returns the number of subscribers msg was delivered to.
func (b *broadcaster) publish(msg []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.subs {
		select {
		case c <- msg:
			n++
			continue
		default:
		}

		// Channel is full: drop the oldest buffered message to make room,
		// the way a lagging tokio broadcast receiver loses its oldest
		// unread message rather than stalling the publisher.
		select {
		case <-c:
		default:
		}
		select {
		case c <- msg:
			n++
		default:
			// Lost the race with a concurrent receive; leave this
			// subscriber unreached for this message.
		}
	}
	return n
}
