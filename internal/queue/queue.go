// Package queue holds the radio's playback queue and its bounded history
// of recently played songs.
package queue

import (
	"math/rand"
	"slices"

	"github.com/samber/lo"

	"github.com/chatradio/radiobot/internal/song"
)

// Item is a queued song and the local file it plays from.
type Item struct {
	Song song.Identity
	Path string
}

// Queue is a FIFO of songs. The front is the song currently loaded into
// the sink (or about to be).
type Queue struct {
	items []Item
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{items: make([]Item, 0)}
}

// Push appends an item at the back.
func (q *Queue) Push(item Item) {
	q.items = append(q.items, item)
}

// Front returns the item at the front of the queue.
func (q *Queue) Front() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the front item.
func (q *Queue) Pop() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queue, front first.
func (q *Queue) Items() []Item {
	return slices.Clone(q.items)
}

// History is the bounded, oldest-first list of recently played songs.
type History struct {
	played   []song.Identity
	capacity int
}

// NewHistory creates a history holding at most capacity songs.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{
		played:   make([]song.Identity, 0, capacity+1),
		capacity: capacity,
	}
}

// Record appends s and evicts the oldest entries beyond capacity.
func (h *History) Record(s song.Identity) {
	h.played = append(h.played, s)
	if over := len(h.played) - h.capacity; over > 0 {
		h.played = slices.Delete(h.played, 0, over)
	}
}

// Contains reports whether s was played recently.
func (h *History) Contains(s song.Identity) bool {
	return slices.Contains(h.played, s)
}

// Items returns a copy of the history, oldest first.
func (h *History) Items() []song.Identity {
	return slices.Clone(h.played)
}

// Len returns the number of recorded songs
func (h *History) Len() int {
	return len(h.played)
}

// Cap returns the history capacity
func (h *History) Cap() int {
	return h.capacity
}

// SelectRandomNext picks uniformly among candidates that are not in the
// history. It returns false when every candidate was played recently or
// there are no candidates at all.
func SelectRandomNext(candidates []song.Identity, history *History, rng *rand.Rand) (song.Identity, bool) {
	eligible := lo.Reject(candidates, func(s song.Identity, _ int) bool {
		return history.Contains(s)
	})
	if len(eligible) == 0 {
		return song.Identity{}, false
	}
	return eligible[rng.Intn(len(eligible))], true
}
