// Package memory implements the bounded, append-only audit store. All
// mutation goes through Append, which enforces the capacity invariant
// synchronously so it holds at every observation point.
package memory

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"

	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

type (
	// Store is the process-wide audit history. It retains at most
	// capacity entries, evicting the oldest first, and fans appended
	// entries out to subscribers
	Store struct {
		mu       sync.Mutex
		entries  []*api.MemoryEntry
		capacity int
		hub      topic.Topic[*api.MemoryEntry]
		prod     topic.Producer[*api.MemoryEntry]
	}

	// Consumer receives appended entries as they are stored
	Consumer = topic.Consumer[*api.MemoryEntry]
)

// NewStore creates an audit store with the given capacity; zero or
// negative means the standard bound
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = api.MemoryCapacity
	}
	hub := caravan.NewTopic[*api.MemoryEntry]()
	return &Store{
		entries:  make([]*api.MemoryEntry, 0, capacity),
		capacity: capacity,
		hub:      hub,
		prod:     hub.NewProducer(),
	}
}

// Append records an entry, stamping it if unstamped. Inserting beyond
// capacity evicts the oldest entry in the same critical section
func (s *Store) Append(entry *api.MemoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	s.mu.Unlock()

	s.prod.Send() <- entry

	slog.Debug("Memory entry appended",
		slog.String("event_type", string(entry.EventType)),
		log.CorrelationID(entry.CorrelationID))
}

// History returns entries of the given type in insertion order,
// most-recent-last. An empty type returns everything
func (s *Store) History(eventType api.EventType) []*api.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*api.MemoryEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if eventType == "" || entry.EventType == eventType {
			res = append(res, entry)
		}
	}
	return res
}

// Recent returns the most recent n entries in insertion order
func (s *Store) Recent(n int) []*api.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	res := make([]*api.MemoryEntry, n)
	copy(res, s.entries[len(s.entries)-n:])
	return res
}

// Len returns the current entry count
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats summarizes the store's contents per event type
func (s *Store) Stats() *api.MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byType := map[api.EventType]int{}
	for _, entry := range s.entries {
		byType[entry.EventType]++
	}
	return &api.MemoryStats{
		Entries: len(s.entries),
		ByType:  byType,
	}
}

// FindSimilar scores stored analyses by keyword overlap with the prompt
// and returns the best matches, strongest first
func (s *Store) FindSimilar(prompt string, limit int) []*api.MemoryEntry {
	keywords := tokenize(prompt)
	if len(keywords) == 0 || limit <= 0 {
		return nil
	}

	type scored struct {
		entry *api.MemoryEntry
		score float64
	}

	s.mu.Lock()
	var candidates []scored
	for _, entry := range s.entries {
		if entry.EventType != api.EventAnalysis {
			continue
		}
		analysis, ok := entry.Payload.(*api.Analysis)
		if !ok || analysis.Intent == nil {
			continue
		}
		overlap := 0
		for word := range tokenize(analysis.Intent.Prompt) {
			if _, ok := keywords[word]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, scored{
				entry: entry,
				score: float64(overlap) / float64(len(keywords)),
			})
		}
	}
	s.mu.Unlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	res := make([]*api.MemoryEntry, 0, len(candidates))
	for _, c := range candidates {
		res = append(res, c.entry)
	}
	return res
}

// Subscribe returns a consumer of future appends. Callers must Close it
func (s *Store) Subscribe() Consumer {
	return s.hub.NewConsumer()
}

// Close stops the fan-out hub
func (s *Store) Close() {
	s.prod.Close()
}

func tokenize(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		words[word] = struct{}{}
	}
	return words
}
