// Package orchestrator is the guardian's brain: it turns a caller's
// declared intent into an impact analysis, a validated plan, an
// execution, and a durable audit trail, in that order. Validation and
// policy failures surface before any external side effect.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/modelguard/guardian/internal/flow"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/planner"
	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

// Orchestrator coordinates the analyze, plan, execute, and store stages
// for free-form intents
type Orchestrator struct {
	planner *planner.Planner
	flows   *flow.Flows
	store   *memory.Store
}

// similarLimit bounds how many prior analyses inform recommendations
const similarLimit = 3

// Impact verbs, checked strongest first. The first band with a match
// decides the level
var impactBands = []struct {
	level api.ImpactLevel
	verbs []string
}{
	{api.ImpactCritical, []string{"delete", "drop", "remove", "merge"}},
	{api.ImpactHigh, []string{
		"publish", "release", "deploy", "rollout", "migrate",
	}},
	{api.ImpactMedium, []string{"modify", "change", "update", "rename"}},
}

// New creates an orchestrator over the planner, flow layer, and audit
// store
func New(
	pln *planner.Planner, flows *flow.Flows, store *memory.Store,
) *Orchestrator {
	return &Orchestrator{
		planner: pln,
		flows:   flows,
		store:   store,
	}
}

// HandleIntent runs the full contract for one intent: analyze the
// impact, derive and validate a plan, execute it unless the caller
// asked for planning only, and store every stage in memory. A
// validation or policy failure returns before anything executes
func (o *Orchestrator) HandleIntent(
	ctx context.Context, req *api.IntentRequest,
) (*api.IntentResponse, error) {
	intent := &api.Intent{
		Prompt:      req.Prompt,
		ProjectID:   req.ProjectID,
		WorkspaceID: req.WorkspaceID,
	}

	analysis := o.analyze(intent)

	plan, err := o.planner.Plan(intent)
	if err != nil {
		return nil, err
	}

	o.store.Append(&api.MemoryEntry{
		EventType:     api.EventAnalysis,
		CorrelationID: plan.CorrelationID,
		Payload:       analysis,
	})
	// snapshot: the executor mutates the live plan's actions in place
	o.store.Append(&api.MemoryEntry{
		EventType:     api.EventPlan,
		CorrelationID: plan.CorrelationID,
		Payload:       plan.Snapshot(),
	})

	res := &api.IntentResponse{
		CorrelationID: plan.CorrelationID,
		Analysis:      analysis,
		Plan:          plan,
		Status:        api.FlowPlanned,
	}
	if req.Execute != nil && !*req.Execute {
		slog.Info("Intent planned without execution",
			log.CorrelationID(plan.CorrelationID),
			log.Impact(analysis.Impact))
		return res, nil
	}

	state := api.NewFlowState(plan.CorrelationID, plan.Flow)
	exec, err := o.flows.Executor().Run(ctx, plan, state)
	if err != nil {
		return nil, err
	}
	res.Status = exec.Status
	res.Logs = exec.Logs
	res.Artifacts = collectArtifacts(plan)

	o.store.Append(&api.MemoryEntry{
		EventType:     api.EventResult,
		CorrelationID: plan.CorrelationID,
		Payload:       res,
	})
	slog.Info("Intent handled",
		log.CorrelationID(plan.CorrelationID),
		log.Impact(analysis.Impact),
		log.Status(res.Status))
	return res, nil
}

// Cancel abandons a running intent flow
func (o *Orchestrator) Cancel(cid api.CorrelationID) bool {
	return o.flows.Executor().Cancel(cid)
}

// analyze classifies the intent's blast radius from its verbs, lists
// the service paths it names, and derives recommendations from the
// impact level and prior similar intents
func (o *Orchestrator) analyze(intent *api.Intent) *api.Analysis {
	prompt := strings.ToLower(intent.Prompt)

	impact := api.ImpactLow
	for _, band := range impactBands {
		if containsAny(prompt, band.verbs) {
			impact = band.level
			break
		}
	}

	affected := affectedServices(intent.Prompt)
	return &api.Analysis{
		Intent:           intent,
		Impact:           impact,
		AffectedServices: affected,
		Recommendations:  o.recommend(intent, impact, affected),
	}
}

func (o *Orchestrator) recommend(
	intent *api.Intent, impact api.ImpactLevel, affected []string,
) []string {
	var recs []string
	if impact == api.ImpactHigh || impact == api.ImpactCritical {
		recs = append(recs,
			"Schedule a maintenance window for this change",
			"Notify downstream consumers of potential service impact",
		)
	}
	if impact != api.ImpactLow {
		recs = append(recs, "Run the full regression suite before publishing")
	}
	if len(affected) > 5 {
		recs = append(recs, "Consider a staged rollout across services")
	}

	similar := o.store.FindSimilar(intent.Prompt, similarLimit)
	if len(similar) > 0 {
		recs = append(recs, "Review prior similar changes in memory history")
	}
	return recs
}

// affectedServices extracts the service and model paths the prompt
// names. Tokens with a path separator are treated as references
func affectedServices(prompt string) []string {
	var services []string
	for _, token := range strings.Fields(prompt) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if strings.Contains(token, "::") ||
			(strings.Contains(token, "/") && !strings.HasPrefix(token, "/")) {
			services = append(services, token)
		}
	}
	return services
}

func containsAny(prompt string, verbs []string) bool {
	for _, verb := range verbs {
		if strings.Contains(prompt, verb) {
			return true
		}
	}
	return false
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
		case api.ActionRunTests:
			artifacts = append(artifacts, api.Artifact{
				Name:    string(act.Kind),
				Kind:    "test_report",
				Content: act.Result,
			})
		case api.ActionGenerateService, api.ActionTransformSchema:
			artifacts = append(artifacts, api.Artifact{
				Name:    string(act.Kind),
				Kind:    "generated_code",
				Content: act.Result,
			})
		}
	}
	return artifacts
}
