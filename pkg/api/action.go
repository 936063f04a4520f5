package api

import "time"

type (
	// ActionKind names an operation in the closed action catalog
	ActionKind string

	// ActionStatus represents the current state of an action
	ActionStatus string

	// Params carries the resolved parameters of an action
	Params map[string]any

	// Action is one planned operation against an external service
	Action struct {
		Kind        ActionKind   `json:"kind"`
		Params      Params       `json:"params,omitempty"`
		Status      ActionStatus `json:"status"`
		Independent bool         `json:"independent,omitempty"`
		Result      any          `json:"result,omitempty"`
		Error       string       `json:"error,omitempty"`
		Attempts    int          `json:"attempts,omitempty"`
		StartedAt   time.Time    `json:"started_at,omitempty"`
		CompletedAt time.Time    `json:"completed_at,omitempty"`
	}

	// Plan is an ordered sequence of actions derived from one intent
	Plan struct {
		CorrelationID CorrelationID `json:"correlation_id"`
		Flow          FlowName      `json:"flow"`
		Actions       []*Action     `json:"actions"`
	}
)

const (
	ActionCreateWorkspace ActionKind = "create_workspace"
	ActionCreateModel     ActionKind = "create_model"
	ActionCreateMapping   ActionKind = "create_mapping"
	ActionApplyChange     ActionKind = "apply_change"
	ActionCompile         ActionKind = "compile"
	ActionRunTests        ActionKind = "run_tests"
	ActionGenerateService ActionKind = "generate_service"
	ActionOpenReview      ActionKind = "open_review"
	ActionPublishService  ActionKind = "publish_service"
	ActionSearchDepot     ActionKind = "search_depot"
	ActionImportModel     ActionKind = "import_model"
	ActionTransformSchema ActionKind = "transform_schema"

	ActionPlanIngestion   ActionKind = "plan_ingestion"
	ActionValidateSample  ActionKind = "validate_sample"
	ActionExecuteBackfill ActionKind = "execute_backfill"
	ActionRecordManifest  ActionKind = "record_manifest"

	ActionDetectFormat  ActionKind = "detect_format"
	ActionSchemaToModel ActionKind = "schema_to_model"
	ActionGenerateTests ActionKind = "generate_tests"
	ActionGenerateMocks ActionKind = "generate_mocks"

	ActionEnumerateEntities  ActionKind = "enumerate_entities"
	ActionCompileAll         ActionKind = "compile_all"
	ActionConstraintTests    ActionKind = "run_constraint_tests"
	ActionGenerateEvidence   ActionKind = "generate_evidence"
	ActionListVersions       ActionKind = "list_versions"
	ActionFindLastGood       ActionKind = "find_last_good"
	ActionCreateHotfix       ActionKind = "create_hotfix_workspace"
	ActionRevertToVersion    ActionKind = "revert_to_version"
	ActionFlipTraffic        ActionKind = "flip_traffic"
	ActionVerifyVersionsLive ActionKind = "verify_versions_live"
)

const (
	ActionPending   ActionStatus = "pending"
	ActionRunning   ActionStatus = "running"
	ActionSucceeded ActionStatus = "succeeded"
	ActionFailed    ActionStatus = "failed"
	ActionSkipped   ActionStatus = "skipped"
	ActionCancelled ActionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal one
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionSucceeded, ActionFailed, ActionSkipped, ActionCancelled:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the action detached from further executor
// mutation. Stored audit payloads must never change after insertion
func (a *Action) Snapshot() *Action {
	cp := *a
	if a.Params != nil {
		cp.Params = make(Params, len(a.Params))
		for k, v := range a.Params {
			cp.Params[k] = v
		}
	}
	return &cp
}

// Snapshot returns a copy of the plan with every action snapshotted
func (p *Plan) Snapshot() *Plan {
	cp := *p
	cp.Actions = make([]*Action, len(p.Actions))
	for i, act := range p.Actions {
		cp.Actions[i] = act.Snapshot()
	}
	return &cp
}

// Get returns a string parameter, reporting whether it was present and
// non-empty
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
