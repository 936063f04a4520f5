package api

import "github.com/google/uuid"

type (
	// CorrelationID threads one plan's execution across every adapter
	// call and memory entry derived from it
	CorrelationID string

	// ManifestID uniquely identifies a bulk-operation manifest
	ManifestID string

	// FlowName identifies a specialized flow
	FlowName string
)

const (
	FlowIntent           FlowName = "intent"
	FlowIngestPublish    FlowName = "ingest_publish"
	FlowSafeRollout      FlowName = "safe_rollout"
	FlowModelReuse       FlowName = "model_reuse"
	FlowGovernanceAudit  FlowName = "governance_audit"
	FlowContractFirst    FlowName = "contract_first"
	FlowBulkBackfill     FlowName = "bulk_backfill"
	FlowIncidentRollback FlowName = "incident_rollback"
)

// NewCorrelationID generates a fresh correlation ID
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

// NewManifestID generates a fresh manifest ID
func NewManifestID() ManifestID {
	return ManifestID(uuid.NewString())
}
