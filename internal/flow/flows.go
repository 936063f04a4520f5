package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/pkg/api"
)

type (
	// Options configures the flow layer
	Options struct {
		ProjectID   string
		WorkspaceID string

		BackfillParallelism int
		BackfillTolerance   float64
		SampleSize          int
	}

	// Flows implements the specialized multi-step use cases over the
	// generic executor and the adapter clients
	Flows struct {
		clients   *client.Set
		store     *memory.Store
		policy    *policy.Engine
		exec      *Executor
		manifests *ManifestStore
		opts      Options
	}
)

// Published service version labels used by rollout and rollback
const (
	VersionV1 = "1.0.0"
	VersionV2 = "2.0.0"
)

// New creates the flow layer and registers every action handler on the
// executor
func New(
	clients *client.Set, store *memory.Store, pol *policy.Engine,
	exec *Executor, manifests *ManifestStore, opts Options,
) *Flows {
	if opts.BackfillParallelism <= 0 {
		opts.BackfillParallelism = 1
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 100
	}

	f := &Flows{
		clients:   clients,
		store:     store,
		policy:    pol,
		exec:      exec,
		manifests: manifests,
		opts:      opts,
	}
	f.registerHandlers()
	return f
}

// Executor exposes the underlying executor, used by the orchestrator
// for intent plans and cancellation
func (f *Flows) Executor() *Executor {
	return f.exec
}

// run validates the plan against policy, executes it, and shapes the
// common response
func (f *Flows) run(
	ctx context.Context, plan *api.Plan,
) (*api.FlowResponse, error) {
	if err := f.policy.CheckPlan(plan); err != nil {
		return nil, err
	}

	state := api.NewFlowState(plan.CorrelationID, plan.Flow)
	res, err := f.exec.Run(ctx, plan, state)
	if err != nil {
		return nil, err
	}

	return &api.FlowResponse{
		UseCase:       plan.Flow,
		CorrelationID: plan.CorrelationID,
		Status:        res.Status,
		State:         state,
		Plan:          plan,
		Logs:          res.Logs,
		Artifacts:     collectArtifacts(plan),
	}, nil
}

// collectArtifacts lifts notable action results into caller-visible
// artifacts
func collectArtifacts(plan *api.Plan) []api.Artifact {
	var artifacts []api.Artifact
	for _, act := range plan.Actions {
		if act.Status != api.ActionSucceeded || act.Result == nil {
			continue
		}
		switch act.Kind {
		case api.ActionRunTests, api.ActionConstraintTests:
			artifacts = append(artifacts, api.Artifact{
				Name:    string(act.Kind),
				Kind:    "test_report",
				Content: act.Result,
			})
		case api.ActionGenerateService, api.ActionGenerateMocks,
			api.ActionGenerateTests, api.ActionSchemaToModel,
			api.ActionTransformSchema:
			artifacts = append(artifacts, api.Artifact{
				Name:    string(act.Kind),
				Kind:    "generated_code",
				Content: act.Result,
			})
		case api.ActionRecordManifest, api.ActionGenerateEvidence:
			artifacts = append(artifacts, api.Artifact{
				Name:    string(act.Kind),
				Kind:    "manifest",
				Content: act.Result,
			})
		}
	}
	return artifacts
}

// csvToPure renders a class definition from CSV headers. Every column
// becomes a String property
func csvToPure(modelName, csvData string) string {
	lines := strings.Split(strings.TrimSpace(csvData), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return fmt.Sprintf("Class model::%s {}", modelName)
	}

	var fields []pureField
	for _, header := range strings.Split(lines[0], ",") {
		fields = append(fields, pureField{
			name: strings.TrimSpace(header),
			kind: "String",
		})
	}
	return renderPureClass(modelName, fields)
}
