package flow

import (
	"context"
	"fmt"

	"github.com/modelguard/guardian/pkg/api"
)

// rollbackRun carries version listings and the chosen rollback target
// across the incident flow's actions
type rollbackRun struct {
	Versions []api.ServiceVersion `json:"-"`
	Target   string               `json:"-"`
}

func rollbackRunOf(act *api.Action) *rollbackRun {
	run, _ := act.Params[runParam].(*rollbackRun)
	return run
}

// IncidentRollback runs the emergency rollback flow: list the published
// versions, pick the last known-good one (or the requested target),
// optionally open a hotfix workspace, revert, flip traffic, and verify
// the restored version is live
func (f *Flows) IncidentRollback(
	ctx context.Context, req *api.IncidentRollbackRequest,
) (*api.FlowResponse, error) {
	if req.ServicePath == "" {
		return nil, fmt.Errorf("%w: service_path is required",
			api.ErrValidation)
	}

	run := &rollbackRun{Target: req.TargetVersion}
	actions := []*api.Action{
		{
			Kind: api.ActionListVersions,
			Params: api.Params{
				"service_path": req.ServicePath,
				runParam:       run,
			},
			Status: api.ActionPending,
		},
		{
			Kind:   api.ActionFindLastGood,
			Params: api.Params{runParam: run},
			Status: api.ActionPending,
		},
	}
	if req.CreateHotfix {
		actions = append(actions, &api.Action{
			Kind: api.ActionCreateHotfix,
			Params: api.Params{
				"workspace_id": f.opts.WorkspaceID + "-hotfix",
			},
			Status: api.ActionPending,
		})
	}
	actions = append(actions,
		&api.Action{
			Kind: api.ActionRevertToVersion,
			Params: api.Params{
				runParam: run,
			},
			Status: api.ActionPending,
		},
		&api.Action{
			Kind: api.ActionFlipTraffic,
			Params: api.Params{
				"service_path": req.ServicePath,
				runParam:       run,
			},
			Status: api.ActionPending,
		},
		&api.Action{
			Kind: api.ActionVerifyVersionsLive,
			Params: api.Params{
				"service_path": req.ServicePath,
				runParam:       run,
			},
			Status: api.ActionPending,
		},
	)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowIncidentRollback,
		Actions:       actions,
	}
	res, err := f.run(ctx, plan)
	if err != nil {
		return nil, err
	}
	res.Detail = map[string]any{"rolled_back_to": run.Target}
	return res, nil
}
