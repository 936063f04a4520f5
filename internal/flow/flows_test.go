package flow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/internal/flow"
	"github.com/modelguard/guardian/internal/memory"
	"github.com/modelguard/guardian/internal/policy"
	"github.com/modelguard/guardian/pkg/api"
)

type fakeServices struct {
	engine *http.ServeMux
	sdlc   *http.ServeMux
	depot  *http.ServeMux

	reviewCalls  int
	publishCalls int
}

func newFakeServices() *fakeServices {
	f := &fakeServices{
		engine: http.NewServeMux(),
		sdlc:   http.NewServeMux(),
		depot:  http.NewServeMux(),
	}

	f.engine.HandleFunc("/api/pure/v1/compilation/compile",
		jsonReply(`{"status":"SUCCESS"}`))
	f.engine.HandleFunc("/api/pure/v1/test/run",
		jsonReply(`{"tests":[{"name":"t1","status":"PASS"}]}`))
	f.engine.HandleFunc("/api/pure/v1/codeGeneration/generate",
		jsonReply(`{"code":"public class Svc {}"}`))
	f.engine.HandleFunc("/api/pure/v1/schemaGeneration/",
		jsonReply(`{"content":"{\"type\":\"object\"}"}`))

	f.sdlc.HandleFunc("/api/projects/", func(
		w http.ResponseWriter, r *http.Request,
	) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/entities") &&
			r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[]`))
		case strings.HasSuffix(r.URL.Path, "/reviews"):
			f.reviewCalls++
			_, _ = w.Write([]byte(
				`{"id":"r-1","title":"t","webURL":"http://sdlc/r-1"}`))
		case strings.HasSuffix(r.URL.Path, "/revisions"):
			_, _ = w.Write([]byte(`[{"id":"rev-2"},{"id":"rev-1"}]`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	f.depot.HandleFunc("/api/entities/search", jsonReply(
		`[{"path":"model::Trade","classifierPath":"class","content":{"source":"Class model::Trade {}"}}]`))
	f.depot.HandleFunc("/api/services/", jsonReply(
		`[{"version":"2.0.0","healthy":true},{"version":"1.0.0","healthy":true}]`))
	f.depot.HandleFunc("/api/projects/", func(
		w http.ResponseWriter, _ *http.Request,
	) {
		f.publishCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"1.0.0","url":"depot://svc"}`))
	})

	return f
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newFlows(t *testing.T, fake *fakeServices) (*flow.Flows, *memory.Store) {
	t.Helper()

	engineSrv := httptest.NewServer(fake.engine)
	sdlcSrv := httptest.NewServer(fake.sdlc)
	depotSrv := httptest.NewServer(fake.depot)
	t.Cleanup(engineSrv.Close)
	t.Cleanup(sdlcSrv.Close)
	t.Cleanup(depotSrv.Close)

	timeout := 2 * time.Second
	registry := client.NewMemoryRegistry(time.Minute)

	engine, err := client.NewEngineClient(client.Options{
		Service: "engine", BaseURL: engineSrv.URL, Timeout: timeout,
	})
	require.NoError(t, err)
	sdlc, err := client.NewSDLCClient(client.Options{
		Service: "sdlc", BaseURL: sdlcSrv.URL, Timeout: timeout,
	}, registry)
	require.NoError(t, err)
	depot, err := client.NewDepotClient(client.Options{
		Service: "depot", BaseURL: depotSrv.URL, Timeout: timeout,
	}, registry)
	require.NoError(t, err)

	store := memory.NewStore(500)
	t.Cleanup(store.Close)

	exec := flow.NewExecutor(flow.NewRetryPolicy(api.RetryConfig{
		MaxRetries:  1,
		InitBackoff: 1,
		MaxBackoff:  10,
		BackoffType: api.BackoffTypeFixed,
	}), store)

	manifests, err := flow.NewManifestStore(
		context.Background(), "mem://", "manifests/",
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manifests.Close() })

	flows := flow.New(
		&client.Set{Engine: engine, SDLC: sdlc, Depot: depot},
		store, policy.NewEngine(), exec, manifests,
		flow.Options{
			ProjectID:           "demo-project",
			WorkspaceID:         "guardian-dev",
			BackfillParallelism: 2,
			BackfillTolerance:   0.05,
			SampleSize:          100,
		},
	)
	return flows, store
}

func TestIngestPublishHappyPath(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.IngestPublish(
		context.Background(), &api.IngestPublishRequest{
			CSVData:     "ticker,quantity\nAAPL,100\nMSFT,200",
			ModelName:   "Trade",
			ServicePath: "trades/byTicker",
		},
	)
	require.NoError(t, err)

	assert.Equal(t, api.FlowCompleted, res.Status)
	assert.Equal(t, api.FlowIngestPublish, res.UseCase)
	for _, act := range res.Plan.Actions {
		assert.Equal(t, api.ActionSucceeded, act.Status,
			string(act.Kind))
	}
	assert.Equal(t, 1, fake.reviewCalls)
	assert.Equal(t, 1, fake.publishCalls)
	assert.NotEmpty(t, res.Artifacts)
}

func TestIngestPublishValidation(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	_, err := flows.IngestPublish(
		context.Background(), &api.IngestPublishRequest{
			ModelName: "Trade",
		},
	)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Zero(t, fake.reviewCalls)
}

func TestSafeRolloutKeepV1FailsWhenV1NotLive(t *testing.T) {
	fake := newFakeServices()
	// only v2 is live after publish
	fake.depot.HandleFunc("/api/services/model::Trade/versions", jsonReply(
		`[{"version":"2.0.0","healthy":true}]`))
	flows, _ := newFlows(t, fake)

	res, err := flows.SafeRollout(
		context.Background(), &api.SafeRolloutRequest{
			ModelPath: "model::Trade",
			Changes:   map[string]any{"venue": "string"},
			KeepV1:    true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowFailed, res.Status)

	last := res.Plan.Actions[len(res.Plan.Actions)-1]
	assert.Equal(t, api.ActionVerifyVersionsLive, last.Kind)
	assert.Equal(t, api.ActionFailed, last.Status)
	assert.Contains(t, last.Error, "1.0.0")
}

func TestSafeRolloutKeepV1Succeeds(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.SafeRollout(
		context.Background(), &api.SafeRolloutRequest{
			ModelPath: "model::Trade",
			Changes:   map[string]any{"venue": "string"},
			KeepV1:    true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)
}

func TestModelReuse(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.ModelReuse(
		context.Background(), &api.ModelReuseRequest{
			SearchQuery: "trade model",
			ServiceName: "trades/reused",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)
}

func TestGovernanceAuditRecordsEvidence(t *testing.T) {
	fake := newFakeServices()
	flows, store := newFlows(t, fake)

	res, err := flows.GovernanceAudit(
		context.Background(), &api.GovernanceAuditRequest{
			IncludeTests:     true,
			GenerateEvidence: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)

	var found bool
	for _, artifact := range res.Artifacts {
		if artifact.Kind == "manifest" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotEmpty(t, store.History(api.EventFlow))
}

func TestContractFirstBothSchemasRejected(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	_, err := flows.ContractFirst(
		context.Background(), &api.ContractFirstRequest{
			Schema:      map[string]any{"title": "A"},
			OpenAPISpec: map[string]any{"openapi": "3.0.0"},
			ServicePath: "svc/path",
		},
	)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Zero(t, fake.publishCalls)
}

func TestContractFirstGeneratesAndPublishes(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.ContractFirst(
		context.Background(), &api.ContractFirstRequest{
			Schema: map[string]any{
				"title": "Trade",
				"properties": map[string]any{
					"ticker": map[string]any{"type": "string"},
				},
			},
			ServicePath:   "trades/contract",
			GenerateTests: true,
			GenerateMocks: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)
	assert.Equal(t, 1, fake.publishCalls)

	kinds := map[string]bool{}
	for _, artifact := range res.Artifacts {
		kinds[artifact.Kind] = true
	}
	assert.True(t, kinds["generated_code"])
}

func TestBulkBackfillWithinTolerance(t *testing.T) {
	fake := newFakeServices()
	flows, store := newFlows(t, fake)

	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "%d,item\n", i)
	}

	res, err := flows.BulkBackfill(
		context.Background(), &api.BulkBackfillRequest{
			DataSource:     b.String(),
			WindowSize:     100,
			TargetModel:    "model::Trade",
			ValidateSample: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)
	assert.NotEmpty(t, store.History(api.EventManifest))
}

func TestBulkBackfillBeyondToleranceCompletesDirty(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < 450; i++ {
		fmt.Fprintf(&b, "%d,item\n", i)
	}
	// 10% of records malformed, above the 5% tolerance but below the
	// sample-validation threshold within the first 100 records
	for i := 0; i < 50; i++ {
		b.WriteString("broken\n")
	}

	res, err := flows.BulkBackfill(
		context.Background(), &api.BulkBackfillRequest{
			DataSource:  b.String(),
			WindowSize:  100,
			TargetModel: "model::Trade",
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompletedDirty, res.Status)
}

func TestBulkBackfillInvalidSampleNeverProceeds(t *testing.T) {
	fake := newFakeServices()
	flows, store := newFlows(t, fake)

	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d,item\n", i)
	}
	for i := 0; i < 40; i++ {
		b.WriteString("broken\n")
	}

	res, err := flows.BulkBackfill(
		context.Background(), &api.BulkBackfillRequest{
			DataSource:     b.String(),
			WindowSize:     50,
			TargetModel:    "model::Trade",
			ValidateSample: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowFailed, res.Status)

	var sampleFailed, backfillSkipped, manifestRecorded bool
	for _, act := range res.Plan.Actions {
		switch act.Kind {
		case api.ActionValidateSample:
			sampleFailed = act.Status == api.ActionFailed
		case api.ActionExecuteBackfill:
			backfillSkipped = act.Status == api.ActionSkipped
		case api.ActionRecordManifest:
			manifestRecorded = act.Status == api.ActionSucceeded
		}
	}
	assert.True(t, sampleFailed)
	assert.True(t, backfillSkipped)
	assert.True(t, manifestRecorded)
	assert.NotEmpty(t, store.History(api.EventManifest))
}

func TestIncidentRollback(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.IncidentRollback(
		context.Background(), &api.IncidentRollbackRequest{
			ServicePath:  "svc",
			CreateHotfix: true,
		},
	)
	require.NoError(t, err)
	assert.Equal(t, api.FlowCompleted, res.Status)

	detail, ok := res.Detail.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", detail["rolled_back_to"])
}

func TestFlowResponseSerializes(t *testing.T) {
	fake := newFakeServices()
	flows, _ := newFlows(t, fake)

	res, err := flows.ModelReuse(
		context.Background(), &api.ModelReuseRequest{
			SearchQuery: "trade",
			ServiceName: "trades/reused",
		},
	)
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), string(res.CorrelationID))
}
