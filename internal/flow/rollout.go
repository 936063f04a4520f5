package flow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelguard/guardian/pkg/api"
)

// SafeRollout runs the versioned model-change flow: apply the change in
// a fresh workspace, compile, run the regression suite, publish v2, and
// verify the required versions are live. With keep_v1 the original
// version must remain reachable after publication; the flow fails
// rather than silently dropping v1
func (f *Flows) SafeRollout(
	ctx context.Context, req *api.SafeRolloutRequest,
) (*api.FlowResponse, error) {
	if req.ModelPath == "" || len(req.Changes) == 0 {
		return nil, fmt.Errorf("%w: model_path and changes are required",
			api.ErrValidation)
	}

	servicePath := req.ModelPath
	required := VersionV2
	if req.KeepV1 {
		required = VersionV1 + "," + VersionV2
	}
	pure := renderChangedModel(req.ModelPath, req.Changes)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowSafeRollout,
		Actions: []*api.Action{
			{
				Kind: api.ActionCreateWorkspace,
				Params: api.Params{
					"workspace_id": f.opts.WorkspaceID + "-v2",
				},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionApplyChange,
				Params: api.Params{
					"model_path":   req.ModelPath,
					"changes":      req.Changes,
					"workspace_id": f.opts.WorkspaceID + "-v2",
					"entity_count": 1,
				},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionCompile,
				Params: api.Params{"pure": pure},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionRunTests,
				Params: api.Params{},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionOpenReview,
				Params: api.Params{
					"title": "Safe rollout: " + req.ModelPath + " changes",
				},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionPublishService,
				Params: api.Params{
					"service_path": servicePath,
					"version":      VersionV2,
				},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionVerifyVersionsLive,
				Params: api.Params{
					"service_path": servicePath,
					"versions":     required,
				},
				Status: api.ActionPending,
			},
		},
	}
	return f.run(ctx, plan)
}

// renderChangedModel rebuilds the class source with the requested field
// changes applied. Change values name the field types
func renderChangedModel(modelPath string, changes map[string]any) string {
	name := modelPath
	if i := strings.LastIndex(modelPath, ":"); i >= 0 {
		name = modelPath[i+1:]
	}

	fields := make([]pureField, 0, len(changes))
	for field, value := range changes {
		kind := "String"
		if s, ok := value.(string); ok && s != "" {
			kind = pureType(s)
		}
		fields = append(fields, pureField{name: field, kind: kind})
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].name < fields[j].name
	})
	return renderPureClass(name, fields)
}
