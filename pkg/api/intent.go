package api

type (
	// ImpactLevel classifies the blast radius of an intent
	ImpactLevel string

	// Intent is a caller's declared goal. Immutable once accepted
	Intent struct {
		Prompt      string `json:"prompt"`
		ProjectID   string `json:"project_id,omitempty"`
		WorkspaceID string `json:"workspace_id,omitempty"`
	}

	// Analysis is the result of the orchestrator's analyze stage
	Analysis struct {
		Intent           *Intent     `json:"intent"`
		Impact           ImpactLevel `json:"impact"`
		AffectedServices []string    `json:"affected_services,omitempty"`
		Recommendations  []string    `json:"recommendations,omitempty"`
	}
)

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)
