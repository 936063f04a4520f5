package flow

import (
	"context"

	"github.com/modelguard/guardian/pkg/api"
)

// auditRun carries the enumerated entities across the audit flow
type auditRun struct {
	Entities []api.Entity `json:"-"`
}

func auditRunOf(act *api.Action) *auditRun {
	run, _ := act.Params[runParam].(*auditRun)
	return run
}

// GovernanceAudit runs the lineage-proof flow: enumerate every model
// element in scope, compile them all, optionally run constraint tests,
// and record evidence. Evidence generation is independent so a failed
// audit still leaves a manifest of what was examined
func (f *Flows) GovernanceAudit(
	ctx context.Context, req *api.GovernanceAuditRequest,
) (*api.FlowResponse, error) {
	run := &auditRun{}
	actions := []*api.Action{
		{
			Kind:   api.ActionEnumerateEntities,
			Params: api.Params{runParam: run},
			Status: api.ActionPending,
		},
		{
			Kind:   api.ActionCompileAll,
			Params: api.Params{},
			Status: api.ActionPending,
		},
	}
	if req.IncludeTests {
		actions = append(actions, &api.Action{
			Kind:   api.ActionConstraintTests,
			Params: api.Params{"test_path": req.Scope},
			Status: api.ActionPending,
		})
	}
	if req.GenerateEvidence {
		actions = append(actions, &api.Action{
			Kind:        api.ActionGenerateEvidence,
			Params:      api.Params{runParam: run},
			Status:      api.ActionPending,
			Independent: true,
		})
	}

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowGovernanceAudit,
		Actions:       actions,
	}
	return f.run(ctx, plan)
}
