package flow

import (
	"context"
	"fmt"

	"github.com/modelguard/guardian/pkg/api"
)

// reuseRun carries depot search results across the reuse flow's actions
type reuseRun struct {
	Found []api.Entity `json:"-"`
}

const runParam = "run"

func reuseRunOf(act *api.Action) *reuseRun {
	run, _ := act.Params[runParam].(*reuseRun)
	return run
}

// ModelReuse runs the depot search → import → transform → service flow:
// an existing published model is pulled into the workspace, rendered in
// the requested interchange format, and exposed as a new service
func (f *Flows) ModelReuse(
	ctx context.Context, req *api.ModelReuseRequest,
) (*api.FlowResponse, error) {
	if req.SearchQuery == "" || req.ServiceName == "" {
		return nil, fmt.Errorf(
			"%w: search_query and service_name are required",
			api.ErrValidation)
	}
	format := req.TargetFormat
	if format == "" {
		format = FormatJSONSchema
	}

	run := &reuseRun{}
	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowModelReuse,
		Actions: []*api.Action{
			{
				Kind: api.ActionSearchDepot,
				Params: api.Params{
					"query":  req.SearchQuery,
					runParam: run,
				},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionImportModel,
				Params: api.Params{runParam: run},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionTransformSchema,
				Params: api.Params{
					"format": format,
					runParam: run,
				},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionGenerateService,
				Params: api.Params{"path": req.ServiceName},
				Status: api.ActionPending,
			},
		},
	}
	return f.run(ctx, plan)
}
