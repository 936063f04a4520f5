package flow

import (
	"context"
	"fmt"

	"github.com/modelguard/guardian/pkg/api"
)

// IngestPublish runs the ingest → compile → review → publish flow: a
// CSV source becomes a model, a mapping, and a published service
func (f *Flows) IngestPublish(
	ctx context.Context, req *api.IngestPublishRequest,
) (*api.FlowResponse, error) {
	if req.CSVData == "" || req.ModelName == "" || req.ServicePath == "" {
		return nil, fmt.Errorf(
			"%w: csv_data, model_name, and service_path are required",
			api.ErrValidation)
	}

	mappingName := req.MappingName
	if mappingName == "" {
		mappingName = req.ModelName + "Mapping"
	}
	pure := csvToPure(req.ModelName, req.CSVData)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowIngestPublish,
		Actions: []*api.Action{
			{
				Kind:   api.ActionCreateWorkspace,
				Params: api.Params{"workspace_id": f.opts.WorkspaceID},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionCreateModel,
				Params: api.Params{
					"name": req.ModelName,
					"pure": pure,
				},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionCreateMapping,
				Params: api.Params{
					"name":  mappingName,
					"model": req.ModelName,
				},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionCompile,
				Params: api.Params{"pure": pure},
				Status: api.ActionPending,
			},
			{
				Kind:   api.ActionGenerateService,
				Params: api.Params{"path": req.ServicePath},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionOpenReview,
				Params: api.Params{
					"title": "Add " + req.ModelName + " service",
				},
				Status: api.ActionPending,
			},
			{
				Kind: api.ActionPublishService,
				Params: api.Params{
					"service_path": req.ServicePath,
					"version":      VersionV1,
				},
				Status: api.ActionPending,
			},
		},
	}
	return f.run(ctx, plan)
}
