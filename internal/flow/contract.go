package flow

import (
	"context"
	"fmt"

	"github.com/modelguard/guardian/pkg/api"
)

const sourceParam = "source"

func schemaSourceOf(act *api.Action) (SchemaSource, error) {
	source, ok := act.Params[sourceParam].(SchemaSource)
	if !ok {
		return nil, fmt.Errorf("%w: no schema source bound to action",
			api.ErrValidation)
	}
	return source, nil
}

// ContractFirst runs the schema-driven generation flow: detect the
// contract's format, derive a model from it, optionally generate tests
// and mocks, compile, and publish the resulting service. Exactly one
// schema variant must be supplied
func (f *Flows) ContractFirst(
	ctx context.Context, req *api.ContractFirstRequest,
) (*api.FlowResponse, error) {
	if req.ServicePath == "" {
		return nil, fmt.Errorf("%w: service_path is required",
			api.ErrValidation)
	}

	source, err := NewSchemaSource(req)
	if err != nil {
		return nil, err
	}
	pure, err := source.ToModel()
	if err != nil {
		return nil, err
	}

	actions := []*api.Action{
		{
			Kind:   api.ActionDetectFormat,
			Params: api.Params{sourceParam: source},
			Status: api.ActionPending,
		},
		{
			Kind:   api.ActionSchemaToModel,
			Params: api.Params{sourceParam: source},
			Status: api.ActionPending,
		},
	}
	if req.GenerateTests {
		actions = append(actions, &api.Action{
			Kind:   api.ActionGenerateTests,
			Params: api.Params{sourceParam: source},
			Status: api.ActionPending,
		})
	}
	if req.GenerateMocks {
		actions = append(actions, &api.Action{
			Kind:   api.ActionGenerateMocks,
			Params: api.Params{sourceParam: source},
			Status: api.ActionPending,
		})
	}
	actions = append(actions,
		&api.Action{
			Kind:   api.ActionCompile,
			Params: api.Params{"pure": pure},
			Status: api.ActionPending,
		},
		&api.Action{
			Kind:   api.ActionGenerateService,
			Params: api.Params{"path": req.ServicePath},
			Status: api.ActionPending,
		},
		&api.Action{
			Kind: api.ActionPublishService,
			Params: api.Params{
				"service_path": req.ServicePath,
				"version":      VersionV1,
			},
			Status: api.ActionPending,
		},
	)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowContractFirst,
		Actions:       actions,
	}
	return f.run(ctx, plan)
}

func (f *Flows) handleDetectFormat(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	source, err := schemaSourceOf(act)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"format": source.Format(),
		"model":  source.ModelName(),
	}, nil
}

func (f *Flows) handleSchemaToModel(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	source, err := schemaSourceOf(act)
	if err != nil {
		return nil, err
	}
	pure, err := source.ToModel()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"model": source.ModelName(),
		"pure":  pure,
	}, nil
}

func (f *Flows) handleGenerateTests(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	source, err := schemaSourceOf(act)
	if err != nil {
		return nil, err
	}
	return map[string]string{"tests": source.ToTests()}, nil
}

func (f *Flows) handleGenerateMocks(
	_ context.Context, _ api.CorrelationID, act *api.Action,
) (any, error) {
	source, err := schemaSourceOf(act)
	if err != nil {
		return nil, err
	}
	return map[string]string{"mocks": source.ToMocks()}, nil
}
