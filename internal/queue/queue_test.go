package queue

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/chatradio/radiobot/internal/song"
)

func mustSong(t *testing.T, id string) song.Identity {
	t.Helper()
	s, err := song.NewYouTube(id)
	if err != nil {
		t.Fatalf("NewYouTube(%q) failed: %v", id, err)
	}
	return s
}

func TestNewQueue(t *testing.T) {
	q := NewQueue()

	if q.Len() != 0 {
		t.Errorf("Expected size 0, got %d", q.Len())
	}
	if _, ok := q.Front(); ok {
		t.Error("Expected no front on empty queue")
	}
	if _, ok := q.Pop(); ok {
		t.Error("Expected Pop to fail on empty queue")
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	a, b, c := mustSong(t, "aaa"), mustSong(t, "bbb"), mustSong(t, "ccc")

	q.Push(Item{Song: a, Path: "/p/a.ogg"})
	q.Push(Item{Song: b, Path: "/p/b.ogg"})
	q.Push(Item{Song: c, Path: "/p/c.ogg"})

	front, ok := q.Front()
	if !ok || front.Song != a {
		t.Fatalf("Expected front %v, got %v", a, front.Song)
	}

	for _, want := range []song.Identity{a, b, c} {
		got, ok := q.Pop()
		if !ok {
			t.Fatal("Pop failed before queue was empty")
		}
		if got.Song != want {
			t.Errorf("Expected %v, got %v", want, got.Song)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d items", q.Len())
	}
}

func TestQueueItemsIsCopy(t *testing.T) {
	q := NewQueue()
	q.Push(Item{Song: mustSong(t, "aaa")})

	items := q.Items()
	items[0] = Item{}

	front, _ := q.Front()
	if front.Song.IsZero() {
		t.Error("Mutating Items() changed the queue")
	}
}

func TestHistoryBound(t *testing.T) {
	h := NewHistory(3)

	for i := 0; i < 10; i++ {
		h.Record(mustSong(t, fmt.Sprintf("song%d", i)))
		if h.Len() > h.Cap() {
			t.Fatalf("History length %d exceeds capacity %d", h.Len(), h.Cap())
		}
	}

	got := h.Items()
	want := []string{"song7", "song8", "song9"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID() != want[i] {
			t.Errorf("Entry %d: expected %s, got %s", i, want[i], got[i].ID())
		}
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory(2)
	a, b, c := mustSong(t, "aaa"), mustSong(t, "bbb"), mustSong(t, "ccc")

	h.Record(a)
	h.Record(b)
	h.Record(c)

	if h.Contains(a) {
		t.Error("Expected oldest entry to be evicted")
	}
	if !h.Contains(b) || !h.Contains(c) {
		t.Error("Expected newer entries to remain")
	}
}

func TestHistoryZeroCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Record(mustSong(t, "aaa"))

	if h.Len() != 0 {
		t.Errorf("Expected empty history with zero capacity, got %d", h.Len())
	}

	h = NewHistory(-4)
	if h.Cap() != 0 {
		t.Errorf("Expected negative capacity to clamp to 0, got %d", h.Cap())
	}
}

func TestSelectRandomNextExcludesHistory(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, b, c := mustSong(t, "aaa"), mustSong(t, "bbb"), mustSong(t, "ccc")

	h := NewHistory(5)
	h.Record(a)
	h.Record(c)

	for i := 0; i < 100; i++ {
		got, ok := SelectRandomNext([]song.Identity{a, b, c}, h, rng)
		if !ok {
			t.Fatal("Expected a selection")
		}
		if got != b {
			t.Fatalf("Expected only eligible song %v, got %v", b, got)
		}
	}
}

func TestSelectRandomNextCoversAllEligible(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	candidates := []song.Identity{mustSong(t, "aaa"), mustSong(t, "bbb"), mustSong(t, "ccc"), mustSong(t, "ddd")}
	h := NewHistory(1)
	h.Record(candidates[0])

	seen := make(map[song.Identity]int)
	for i := 0; i < 300; i++ {
		got, ok := SelectRandomNext(candidates, h, rng)
		if !ok {
			t.Fatal("Expected a selection")
		}
		seen[got]++
	}

	if seen[candidates[0]] != 0 {
		t.Errorf("History entry was selected %d times", seen[candidates[0]])
	}
	for _, c := range candidates[1:] {
		if seen[c] == 0 {
			t.Errorf("Eligible song %v was never selected", c)
		}
	}
}

func TestSelectRandomNextNoneEligible(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, b := mustSong(t, "aaa"), mustSong(t, "bbb")

	h := NewHistory(5)
	h.Record(a)
	h.Record(b)

	if _, ok := SelectRandomNext([]song.Identity{a, b}, h, rng); ok {
		t.Error("Expected no selection when every candidate is in history")
	}
	if _, ok := SelectRandomNext(nil, h, rng); ok {
		t.Error("Expected no selection with no candidates")
	}
}
