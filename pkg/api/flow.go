package api

import "time"

type (
	// FlowStateName identifies a node in a specialized flow's state graph
	FlowStateName string

	// FlowStatus is the terminal disposition of a flow run
	FlowStatus string

	// Transition records one state change of a flow instance
	Transition struct {
		From FlowStateName `json:"from"`
		To   FlowStateName `json:"to"`
		At   time.Time     `json:"at"`
	}

	// FlowState is one state machine instance driving a multi-step flow.
	// It is created when the flow starts and is eligible for eviction once
	// it reaches a terminal state
	FlowState struct {
		FlowID  CorrelationID `json:"flow_id"`
		Flow    FlowName      `json:"flow"`
		Current FlowStateName `json:"current"`
		History []Transition  `json:"history"`
	}

	// WindowCounts summarizes the outcome of one backfill window
	WindowCounts struct {
		Window  int `json:"window"`
		Records int `json:"records"`
		Failed  int `json:"failed"`
	}

	// ManifestCounts aggregates what a bulk operation attempted
	ManifestCounts struct {
		TotalRecords  int            `json:"total_records"`
		Windows       int            `json:"windows"`
		FailedRecords int            `json:"failed_records"`
		PerWindow     []WindowCounts `json:"per_window,omitempty"`
	}

	// Manifest is the persisted record of a bulk operation. Read-only
	// once produced
	Manifest struct {
		ManifestID    ManifestID     `json:"manifest_id"`
		CorrelationID CorrelationID  `json:"correlation_id"`
		Location      string         `json:"location"`
		Timestamp     time.Time      `json:"timestamp"`
		Status        FlowStatus     `json:"status"`
		Counts        ManifestCounts `json:"counts"`
	}
)

const (
	FlowPlanned        FlowStatus = "planned"
	FlowCompleted      FlowStatus = "completed"
	FlowCompletedDirty FlowStatus = "completed_with_errors"
	FlowFailed         FlowStatus = "failed"
	FlowCancelled      FlowStatus = "cancelled"
)

// StateStart is the initial state of every flow instance
const StateStart FlowStateName = "start"

// NewFlowState creates a flow state machine instance at the start state
func NewFlowState(id CorrelationID, flow FlowName) *FlowState {
	return &FlowState{
		FlowID:  id,
		Flow:    flow,
		Current: StateStart,
	}
}

// Advance transitions the state machine to the next state, recording the
// transition in history
func (f *FlowState) Advance(to FlowStateName) {
	f.History = append(f.History, Transition{
		From: f.Current,
		To:   to,
		At:   time.Now(),
	})
	f.Current = to
}

// Snapshot returns a copy of the state machine detached from further
// transitions
func (f *FlowState) Snapshot() *FlowState {
	cp := *f
	cp.History = append([]Transition(nil), f.History...)
	return &cp
}

// FailedAt returns the conventional terminal name for a failure that
// occurred in the given state
func FailedAt(state FlowStateName) FlowStateName {
	return "failed@" + state
}
