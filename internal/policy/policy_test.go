package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/pkg/api"
)

func TestNamingRules(t *testing.T) {
	engine := policy.NewEngine()

	tests := []struct {
		name   string
		action *api.Action
		ok     bool
	}{
		{
			name: "pascal case model",
			action: &api.Action{
				Kind:   api.ActionCreateModel,
				Params: api.Params{"name": "TradeEvent"},
			},
			ok: true,
		},
		{
			name: "lowercase model rejected",
			action: &api.Action{
				Kind:   api.ActionCreateModel,
				Params: api.Params{"name": "tradeEvent"},
			},
			ok: false,
		},
		{
			name: "kebab case workspace",
			action: &api.Action{
				Kind:   api.ActionCreateWorkspace,
				Params: api.Params{"workspace_id": "feature-trade-v2"},
			},
			ok: true,
		},
		{
			name: "uppercase workspace rejected",
			action: &api.Action{
				Kind:   api.ActionCreateWorkspace,
				Params: api.Params{"workspace_id": "Feature"},
			},
			ok: false,
		},
		{
			name: "service path with slashes",
			action: &api.Action{
				Kind:   api.ActionGenerateService,
				Params: api.Params{"path": "trading/positions/byDate"},
			},
			ok: true,
		},
		{
			name: "service path leading slash rejected",
			action: &api.Action{
				Kind:   api.ActionGenerateService,
				Params: api.Params{"path": "/trading/positions"},
			},
			ok: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.CheckAction(tc.action)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, api.ErrValidation)
			}
		})
	}
}

func TestPIIDetection(t *testing.T) {
	engine := policy.NewEngine()

	err := engine.CheckAction(&api.Action{
		Kind: api.ActionOpenReview,
		Params: api.Params{
			"title":       "Add trade model",
			"description": "contact alice@example.com for details",
		},
	})
	assert.ErrorIs(t, err, api.ErrValidation)

	err = engine.CheckAction(&api.Action{
		Kind: api.ActionOpenReview,
		Params: api.Params{
			"title": "Add trade model",
			"ssn":   "123-45-6789",
		},
	})
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestRedactPII(t *testing.T) {
	engine := policy.NewEngine()

	redacted := engine.RedactPII("reach me at bob@corp.io or 123-45-6789")
	assert.NotContains(t, redacted, "bob@corp.io")
	assert.NotContains(t, redacted, "123-45-6789")
	assert.Contains(t, redacted, "[REDACTED]")
}

func TestReviewTitleLength(t *testing.T) {
	engine := policy.NewEngine()

	long := make([]byte, policy.MaxReviewTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}

	err := engine.CheckAction(&api.Action{
		Kind:   api.ActionOpenReview,
		Params: api.Params{"title": string(long)},
	})
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestEntityLimit(t *testing.T) {
	engine := policy.NewEngine()

	err := engine.CheckAction(&api.Action{
		Kind:   api.ActionApplyChange,
		Params: api.Params{"entity_count": 101},
	})
	assert.ErrorIs(t, err, api.ErrValidation)

	err = engine.CheckAction(&api.Action{
		Kind:   api.ActionApplyChange,
		Params: api.Params{"entity_count": 100},
	})
	assert.NoError(t, err)
}

func TestSchemaFormatAllowList(t *testing.T) {
	engine := policy.NewEngine()

	for _, format := range []string{"jsonSchema", "avro", "protobuf"} {
		err := engine.CheckAction(&api.Action{
			Kind:   api.ActionTransformSchema,
			Params: api.Params{"format": format},
		})
		assert.NoError(t, err, format)
	}

	err := engine.CheckAction(&api.Action{
		Kind:   api.ActionTransformSchema,
		Params: api.Params{"format": "yaml"},
	})
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestProhibitedActions(t *testing.T) {
	engine := policy.NewEngine(
		policy.WithProhibited(api.ActionPublishService),
	)

	err := engine.CheckAction(&api.Action{
		Kind: api.ActionPublishService,
	})
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestCheckPlanFailsOnFirstViolation(t *testing.T) {
	engine := policy.NewEngine()

	plan := &api.Plan{
		CorrelationID: api.NewCorrelationID(),
		Flow:          api.FlowIntent,
		Actions: []*api.Action{
			{Kind: api.ActionCompile, Params: api.Params{}},
			{
				Kind:   api.ActionCreateModel,
				Params: api.Params{"name": "bad name"},
			},
		},
	}
	err := engine.CheckPlan(plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidation)
}
