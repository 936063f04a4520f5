// Package planner maps an accepted intent onto an ordered plan of
// actions from the closed catalog. Planning is deterministic: identical
// intents always produce identical plans.
package planner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

type (
	// Planner derives plans from intents, resolving parameters against
	// configured defaults and validating the result against policy
	Planner struct {
		policy           *policy.Engine
		defaultProject   string
		defaultWorkspace string
	}

	// rule matches prompt keywords to an action kind. Rules are
	// evaluated in declaration order so plan shape is reproducible
	rule struct {
		keywords []string
		kind     api.ActionKind
		mutating bool
	}
)

// Prompt keywords are matched in dependency order: changes before
// compilation, compilation before review, review before publication
var rules = []rule{
	{
		keywords: []string{"search", "find", "reuse", "existing"},
		kind:     api.ActionSearchDepot,
	},
	{
		keywords: []string{"workspace", "branch"},
		kind:     api.ActionCreateWorkspace,
		mutating: true,
	},
	{
		keywords: []string{"ingest", "load", "import", "model", "mapping"},
		kind:     api.ActionApplyChange,
		mutating: true,
	},
	{
		keywords: []string{"compile", "build", "validate"},
		kind:     api.ActionCompile,
	},
	{
		keywords: []string{"test", "regression"},
		kind:     api.ActionRunTests,
	},
	{
		keywords: []string{"service", "endpoint", "generate"},
		kind:     api.ActionGenerateService,
		mutating: true,
	},
	{
		keywords: []string{"review", "pr ", "pull request", "change request"},
		kind:     api.ActionOpenReview,
		mutating: true,
	},
	{
		keywords: []string{"publish", "release", "deploy"},
		kind:     api.ActionPublishService,
		mutating: true,
	},
}

// Kinds that must be preceded by a successful compile
var requiresCompile = map[api.ActionKind]struct{}{
	api.ActionOpenReview:     {},
	api.ActionPublishService: {},
}

// New creates a planner with the given policy engine and defaults
func New(pol *policy.Engine, defaultProject, defaultWorkspace string) *Planner {
	return &Planner{
		policy:           pol,
		defaultProject:   defaultProject,
		defaultWorkspace: defaultWorkspace,
	}
}

// Plan derives an ordered action plan from the intent. Intents that
// resolve to no recognized operation, or that leave a required
// parameter unresolved, fail validation without side effects
func (p *Planner) Plan(intent *api.Intent) (*api.Plan, error) {
	if strings.TrimSpace(intent.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", api.ErrValidation)
	}

	projectID, workspaceID := p.resolve(intent)
	prompt := strings.ToLower(intent.Prompt)

	var actions []*api.Action
	for _, r := range rules {
		if !matches(prompt, r.keywords) {
			continue
		}
		if r.mutating && (projectID == "" || workspaceID == "") {
			return nil, fmt.Errorf(
				"%w: action %s requires project and workspace",
				api.ErrValidation, r.kind)
		}
		actions = append(actions, &api.Action{
			Kind:   r.kind,
			Params: actionParams(r.kind, intent, projectID, workspaceID),
			Status: api.ActionPending,
		})
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf(
			"%w: no recognized operation in prompt", api.ErrValidation)
	}

	actions = ensureCompile(actions, projectID, workspaceID)

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowIntent,
		Actions:       actions,
	}
	if err := p.policy.CheckPlan(plan); err != nil {
		return nil, err
	}

	slog.Info("Plan created",
		log.CorrelationID(plan.CorrelationID),
		slog.Int("actions", len(plan.Actions)))
	return plan, nil
}

func (p *Planner) resolve(intent *api.Intent) (string, string) {
	projectID := intent.ProjectID
	if projectID == "" {
		projectID = p.defaultProject
	}
	workspaceID := intent.WorkspaceID
	if workspaceID == "" {
		workspaceID = p.defaultWorkspace
	}
	return projectID, workspaceID
}

func matches(prompt string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(prompt, keyword) {
			return true
		}
	}
	return false
}

// ensureCompile inserts a compile action ahead of the first action that
// depends on compiled sources when the plan has none
func ensureCompile(
	actions []*api.Action, projectID, workspaceID string,
) []*api.Action {
	needAt := -1
	for i, act := range actions {
		if act.Kind == api.ActionCompile {
			return actions
		}
		if _, ok := requiresCompile[act.Kind]; ok && needAt < 0 {
			needAt = i
		}
	}
	if needAt < 0 {
		return actions
	}

	compile := &api.Action{
		Kind: api.ActionCompile,
		Params: api.Params{
			"project_id":   projectID,
			"workspace_id": workspaceID,
		},
		Status: api.ActionPending,
	}
	res := make([]*api.Action, 0, len(actions)+1)
	res = append(res, actions[:needAt]...)
	res = append(res, compile)
	res = append(res, actions[needAt:]...)
	return res
}

func actionParams(
	kind api.ActionKind, intent *api.Intent, projectID, workspaceID string,
) api.Params {
	params := api.Params{
		"project_id":   projectID,
		"workspace_id": workspaceID,
	}
	switch kind {
	case api.ActionSearchDepot:
		params["query"] = intent.Prompt
	case api.ActionApplyChange:
		params["description"] = intent.Prompt
		if path := modelRef(intent.Prompt); path != "" {
			params["model_path"] = path
		}
	case api.ActionOpenReview:
		params["title"] = reviewTitle(intent.Prompt)
	}
	return params
}

// modelRef returns the first qualified model path the prompt names
func modelRef(prompt string) string {
	for _, token := range strings.Fields(prompt) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if strings.Contains(token, "::") {
			return token
		}
	}
	return ""
}

// reviewTitle derives a title from the prompt, truncated within the
// policy bound
func reviewTitle(prompt string) string {
	title := strings.TrimSpace(prompt)
	if len(title) > policy.MaxReviewTitleLength {
		title = title[:policy.MaxReviewTitleLength]
	}
	return title
}
