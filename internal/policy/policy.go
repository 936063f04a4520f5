// Package policy enforces guardrails on planned actions before any
// adapter is called. Violations are validation failures and never reach
// the executor.
package policy

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// Engine checks actions against naming rules, PII detection, and
	// per-action limits. An optional Lua guard runs after the built-in
	// checks
	Engine struct {
		naming     map[string]*regexp.Regexp
		pii        []*regexp.Regexp
		prohibited map[api.ActionKind]struct{}
		formats    map[string]struct{}
		guard      *Guard
	}

	// Option configures an Engine
	Option func(*Engine)
)

const (
	// MaxEntitiesPerRequest bounds a single entity upsert
	MaxEntitiesPerRequest = 100

	// MaxReviewTitleLength bounds review titles
	MaxReviewTitleLength = 200
)

const redactedMarker = "[REDACTED]"

var (
	modelNamePattern   = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	servicePathPattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9/]*$`)
	workspacePattern   = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	piiPatterns = []*regexp.Regexp{
		regexp.MustCompile(
			`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		),
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
	}
)

// WithGuard attaches a Lua guard script evaluated for every action
func WithGuard(guard *Guard) Option {
	return func(e *Engine) {
		e.guard = guard
	}
}

// WithProhibited marks action kinds that are always rejected
func WithProhibited(kinds ...api.ActionKind) Option {
	return func(e *Engine) {
		for _, kind := range kinds {
			e.prohibited[kind] = struct{}{}
		}
	}
}

// NewEngine creates a policy engine with the standard rules
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		naming: map[string]*regexp.Regexp{
			"model":     modelNamePattern,
			"service":   servicePathPattern,
			"workspace": workspacePattern,
		},
		pii:        piiPatterns,
		prohibited: map[api.ActionKind]struct{}{},
		formats: map[string]struct{}{
			"jsonSchema": {},
			"avro":       {},
			"protobuf":   {},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckPlan validates every action in a plan. The first violation fails
// the whole plan
func (e *Engine) CheckPlan(plan *api.Plan) error {
	for _, act := range plan.Actions {
		if err := e.CheckAction(act); err != nil {
			return err
		}
	}
	return nil
}

// CheckAction validates a single action's kind and parameters
func (e *Engine) CheckAction(act *api.Action) error {
	if _, ok := e.prohibited[act.Kind]; ok {
		return fmt.Errorf("%w: action %s is prohibited",
			api.ErrValidation, act.Kind)
	}
	if err := e.checkPII(act.Params); err != nil {
		return err
	}
	if err := e.checkKind(act); err != nil {
		return err
	}
	if e.guard != nil {
		allowed, err := e.guard.Evaluate(act)
		if err != nil {
			return fmt.Errorf("%w: guard script: %v", api.ErrValidation, err)
		}
		if !allowed {
			slog.Warn("Action rejected by guard script",
				slog.String("action", string(act.Kind)))
			return fmt.Errorf("%w: action %s rejected by guard",
				api.ErrValidation, act.Kind)
		}
	}
	return nil
}

// RedactPII replaces recognized PII substrings in text
func (e *Engine) RedactPII(text string) string {
	for _, pattern := range e.pii {
		text = pattern.ReplaceAllString(text, redactedMarker)
	}
	return text
}

// AllowedFormats returns the accepted schema formats
func (e *Engine) AllowedFormats() []string {
	res := make([]string, 0, len(e.formats))
	for format := range e.formats {
		res = append(res, format)
	}
	return res
}

func (e *Engine) checkPII(params api.Params) error {
	for key, value := range params {
		s, ok := value.(string)
		if !ok {
			continue
		}
		for _, pattern := range e.pii {
			if pattern.MatchString(s) {
				return fmt.Errorf("%w: PII detected in parameter %q",
					api.ErrValidation, key)
			}
		}
	}
	return nil
}

func (e *Engine) checkKind(act *api.Action) error {
	switch act.Kind {
	case api.ActionCreateWorkspace, api.ActionCreateHotfix:
		return e.checkName(act, "workspace_id", "workspace")

	case api.ActionCreateModel, api.ActionImportModel:
		return e.checkName(act, "name", "model")

	case api.ActionGenerateService:
		return e.checkName(act, "path", "service")

	case api.ActionOpenReview:
		title, _ := act.Params.Get("title")
		if len(title) > MaxReviewTitleLength {
			return fmt.Errorf("%w: review title exceeds %d characters",
				api.ErrValidation, MaxReviewTitleLength)
		}

	case api.ActionApplyChange:
		if n, ok := entityCount(act.Params); ok && n > MaxEntitiesPerRequest {
			return fmt.Errorf("%w: %d entities exceeds limit of %d",
				api.ErrValidation, n, MaxEntitiesPerRequest)
		}

	case api.ActionTransformSchema:
		format, _ := act.Params.Get("format")
		if _, ok := e.formats[format]; !ok {
			return fmt.Errorf("%w: schema format %q not allowed",
				api.ErrValidation, format)
		}
	}
	return nil
}

func entityCount(params api.Params) (int, bool) {
	switch v := params["entity_count"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func (e *Engine) checkName(act *api.Action, param, rule string) error {
	value, ok := act.Params.Get(param)
	if !ok {
		return nil
	}
	if !e.naming[rule].MatchString(value) {
		return fmt.Errorf("%w: %s %q violates %s naming policy",
			api.ErrValidation, param, value, rule)
	}
	return nil
}
