package api

import "time"

type (
	// EventType classifies a memory entry
	EventType string

	// MemoryEntry is one append-only audit record. Entries are owned
	// exclusively by the memory store and never edited after insertion
	MemoryEntry struct {
		EventType     EventType     `json:"event_type"`
		CorrelationID CorrelationID `json:"correlation_id,omitempty"`
		Timestamp     time.Time     `json:"timestamp"`
		Payload       any           `json:"payload,omitempty"`
	}

	// MemoryStats summarizes current memory store contents
	MemoryStats struct {
		Entries int               `json:"entries"`
		ByType  map[EventType]int `json:"by_type"`
	}
)

const (
	EventAnalysis EventType = "analysis"
	EventPlan     EventType = "plan"
	EventAction   EventType = "action"
	EventResult   EventType = "result"
	EventManifest EventType = "manifest"
	EventFlow     EventType = "flow"
)

// MemoryCapacity is the maximum number of entries the store retains;
// appending beyond it evicts the oldest entry first
const MemoryCapacity = 1000
