package pipeline

import (
	"sync"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

// seenResult classifies an event against the seen-set.
type seenResult string

const (
	seenMiss    seenResult = "miss"    // never published
	seenHit     seenResult = "hit"     // published with the same magnitude
	seenRevised seenResult = "revised" // published, magnitude has since changed
)

// seenSet is a thread-safe LRU of published event IDs and the magnitude they
// were published with. Feed revisions that change the magnitude are treated
// as new so downstream consumers receive the update.
type seenSet struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*seenEntry
	head       *seenEntry // most recently used
	tail       *seenEntry // least recently used
}

type seenEntry struct {
	id        string
	magnitude *float64
	prev      *seenEntry
	next      *seenEntry
}

func newSeenSet(maxEntries int) *seenSet {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &seenSet{
		maxEntries: maxEntries,
		entries:    make(map[string]*seenEntry),
	}
}

// check reports whether e was already published with its current magnitude.
func (s *seenSet) check(e domain.Earthquake) seenResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[e.ID]
	if !ok {
		return seenMiss
	}
	s.moveToFront(entry)
	if !sameMagnitude(entry.magnitude, e.Magnitude) {
		return seenRevised
	}
	return seenHit
}

// mark records e as published.
func (s *seenSet) mark(e domain.Earthquake) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mag *float64
	if e.Magnitude != nil {
		v := *e.Magnitude
		mag = &v
	}

	if entry, ok := s.entries[e.ID]; ok {
		entry.magnitude = mag
		s.moveToFront(entry)
		return
	}

	entry := &seenEntry{id: e.ID, magnitude: mag}
	s.entries[e.ID] = entry
	s.addToFront(entry)

	if len(s.entries) > s.maxEntries {
		s.evictTail()
	}
}

func (s *seenSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func sameMagnitude(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *seenSet) moveToFront(e *seenEntry) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

func (s *seenSet) addToFront(e *seenEntry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *seenSet) remove(e *seenEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
}

func (s *seenSet) evictTail() {
	if s.tail == nil {
		return
	}
	delete(s.entries, s.tail.id)
	s.remove(s.tail)
}
