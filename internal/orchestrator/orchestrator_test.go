package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/internal/flow"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/orchestrator"
	"github.com/modelguard/guardian/internal/planner"
	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/pkg/api"
)

type harness struct {
	orch  *orchestrator.Orchestrator
	store *memory.Store

	adapterHits atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}

	fake := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.adapterHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "compilation"):
			_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
		case strings.Contains(r.URL.Path, "test/run"):
			_, _ = w.Write([]byte(
				`{"tests":[{"name":"t1","status":"PASS"}]}`))
		case strings.Contains(r.URL.Path, "codeGeneration"):
			_, _ = w.Write([]byte(`{"code":"public class Svc {}"}`))
		case strings.Contains(r.URL.Path, "reviews"):
			_, _ = w.Write([]byte(`{"id":"r-1","title":"t"}`))
		case strings.Contains(r.URL.Path, "search"):
			_, _ = w.Write([]byte(`[]`))
		case strings.HasSuffix(r.URL.Path, "/entities") &&
			r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		default:
			_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
		}
	})
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	registry := client.NewMemoryRegistry(time.Minute)
	engine, err := client.NewEngineClient(client.Options{
		Service: "engine", BaseURL: srv.URL, Timeout: time.Second,
	})
	require.NoError(t, err)
	sdlc, err := client.NewSDLCClient(client.Options{
		Service: "sdlc", BaseURL: srv.URL, Timeout: time.Second,
	}, registry)
	require.NoError(t, err)
	depot, err := client.NewDepotClient(client.Options{
		Service: "depot", BaseURL: srv.URL, Timeout: time.Second,
	}, registry)
	require.NoError(t, err)

	h.store = memory.NewStore(200)
	t.Cleanup(h.store.Close)

	exec := flow.NewExecutor(flow.NewRetryPolicy(api.RetryConfig{
		MaxRetries:  1,
		InitBackoff: 1,
		MaxBackoff:  10,
		BackoffType: api.BackoffTypeFixed,
	}), h.store)

	manifests, err := flow.NewManifestStore(
		context.Background(), "mem://", "manifests/",
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manifests.Close() })

	pol := policy.NewEngine()
	flows := flow.New(
		&client.Set{Engine: engine, SDLC: sdlc, Depot: depot},
		h.store, pol, exec, manifests,
		flow.Options{ProjectID: "demo-project", WorkspaceID: "guardian-dev"},
	)
	h.orch = orchestrator.New(
		planner.New(pol, "demo-project", "guardian-dev"), flows, h.store,
	)
	return h
}

func TestHandleIntentExecutes(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt: "compile and test model::Trade, then open a review",
		},
	)
	require.NoError(t, err)

	assert.Equal(t, api.FlowCompleted, res.Status)
	assert.NotEmpty(t, res.CorrelationID)
	assert.NotEmpty(t, res.Logs)
	for _, act := range res.Plan.Actions {
		assert.Equal(t, api.ActionSucceeded, act.Status)
	}
}

func TestHandleIntentPlanOnly(t *testing.T) {
	h := newHarness(t)

	execute := false
	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt:  "compile the trade model",
			Execute: &execute,
		},
	)
	require.NoError(t, err)

	assert.Equal(t, api.FlowPlanned, res.Status)
	assert.Zero(t, h.adapterHits.Load())
	for _, act := range res.Plan.Actions {
		assert.Equal(t, api.ActionPending, act.Status)
	}
}

func TestHandleIntentValidationNeverExecutes(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt: "do something unspecified",
		},
	)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Zero(t, h.adapterHits.Load())
}

func TestHandleIntentPolicyViolationNeverExecutes(t *testing.T) {
	h := newHarness(t)

	// review title carries an SSN, which policy screens out
	_, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt: "open a review for customer 123-45-6789",
		},
	)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Zero(t, h.adapterHits.Load())
}

func TestHandleIntentStoresAllStages(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt: "compile the workspace",
		},
	)
	require.NoError(t, err)

	for _, eventType := range []api.EventType{
		api.EventAnalysis, api.EventPlan, api.EventAction, api.EventResult,
	} {
		entries := h.store.History(eventType)
		require.NotEmpty(t, entries, string(eventType))
		assert.Equal(t, res.CorrelationID, entries[0].CorrelationID)
	}
}

func TestStoredPlanIsPreExecutionSnapshot(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt: "compile the workspace",
		},
	)
	require.NoError(t, err)
	require.Equal(t, api.FlowCompleted, res.Status)

	entries := h.store.History(api.EventPlan)
	require.Len(t, entries, 1)
	stored, ok := entries[0].Payload.(*api.Plan)
	require.True(t, ok)
	assert.NotSame(t, res.Plan, stored)

	// the stored plan is as it was when appended; execution mutated
	// only the live plan
	for _, act := range stored.Actions {
		assert.Equal(t, api.ActionPending, act.Status)
		assert.Nil(t, act.Result)
		assert.Zero(t, act.Attempts)
	}
	for _, act := range res.Plan.Actions {
		assert.Equal(t, api.ActionSucceeded, act.Status)
	}
}

func TestAnalyzeImpactLevels(t *testing.T) {
	h := newHarness(t)
	execute := false

	tests := []struct {
		name     string
		prompt   string
		expected api.ImpactLevel
	}{
		{
			name:     "delete is critical",
			prompt:   "delete the legacy model and compile",
			expected: api.ImpactCritical,
		},
		{
			name:     "publish is high",
			prompt:   "compile and publish the trade service",
			expected: api.ImpactHigh,
		},
		{
			name:     "update is medium",
			prompt:   "update the mapping and compile",
			expected: api.ImpactMedium,
		},
		{
			name:     "compile alone is low",
			prompt:   "compile the workspace",
			expected: api.ImpactLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := h.orch.HandleIntent(
				context.Background(), &api.IntentRequest{
					Prompt:  tc.prompt,
					Execute: &execute,
				},
			)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, res.Analysis.Impact)
		})
	}
}

func TestAnalyzeAffectedServices(t *testing.T) {
	h := newHarness(t)
	execute := false

	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt:  "update model::Trade and compile trades/byTicker",
			Execute: &execute,
		},
	)
	require.NoError(t, err)

	assert.Contains(t, res.Analysis.AffectedServices, "model::Trade")
	assert.Contains(t, res.Analysis.AffectedServices, "trades/byTicker")
}

func TestAnalyzeRecommendations(t *testing.T) {
	h := newHarness(t)
	execute := false

	res, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt:  "compile and publish the trade service",
			Execute: &execute,
		},
	)
	require.NoError(t, err)

	recs := strings.Join(res.Analysis.Recommendations, " ")
	assert.Contains(t, recs, "maintenance window")
	assert.Contains(t, recs, "regression suite")
}

func TestRecommendationsUsePriorAnalyses(t *testing.T) {
	h := newHarness(t)
	execute := false

	first, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt:  "compile the trade model workspace",
			Execute: &execute,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowPlanned, first.Status)

	second, err := h.orch.HandleIntent(
		context.Background(), &api.IntentRequest{
			Prompt:  "compile the trade model again",
			Execute: &execute,
		},
	)
	require.NoError(t, err)
	assert.Contains(t, second.Analysis.Recommendations,
		"Review prior similar changes in memory history")
}
