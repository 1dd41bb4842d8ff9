package store

import "time"

// expItem is one entry in the expiration index: the (when, id) pair sorts
// first by instant and then by id, so that two keys expiring at the exact
// same instant still have a well-defined order and the index stays unique
// per entry (mirrors the BTreeMap<(Instant, u64), String> used upstream).
type expItem struct {
	when  time.Time
	id    uint64
	key   string
	index int // maintained by expHeap, needed for heap.Remove
}

// expHeap is a container/heap min-heap of *expItem ordered by (when, id),
// standing in for the ordered map the Rust original keeps its expiration
// index in; Go has no ordered-map equivalent in the standard library, so a
// heap plus an index back-pointer on each entry takes its place.
type expHeap []*expItem

func (h expHeap) Len() int { return len(h) }

func (h expHeap) Less(i, j int) bool {
	if !h[i].when.Equal(h[j].when) {
		return h[i].when.Before(h[j].when)
	}
	return h[i].id < h[j].id
}

func (h expHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expHeap) Push(x interface{}) {
	item := x.(*expItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
