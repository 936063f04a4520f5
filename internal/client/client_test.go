package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelguard/guardian/internal/client"
	"github.com/modelguard/guardian/pkg/api"
)

func newEngine(t *testing.T, handler http.Handler) *client.EngineClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	eng, err := client.NewEngineClient(client.Options{
		Service: "engine",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return eng
}

func TestEngineCompileSuccess(t *testing.T) {
	var gotCID string
	eng := newEngine(t, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotCID = r.Header.Get("X-Correlation-Id")
			assert.Equal(t, "/api/pure/v1/compilation/compile", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
		},
	))

	cid := api.NewCorrelationID()
	result, err := eng.Compile(context.Background(), cid, "Class test::Model {}")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Errors)
	assert.Equal(t, string(cid), gotCID)
}

func TestEngineCompileFailureIsNotAnError(t *testing.T) {
	eng := newEngine(t, http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(
				`{"status":"FAILURE","errors":[{"message":"parse error","line":3}]}`,
			))
		},
	))

	result, err := eng.Compile(context.Background(), "cid-1", "Class {")
	require.NoError(t, err)
	assert.False(t, result.OK)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "parse error", result.Errors[0].Message)
}

func TestAdapterErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "server error is transient", status: 500, transient: true},
		{name: "bad gateway is transient", status: 502, transient: true},
		{name: "bad request is permanent", status: 400, transient: false},
		{name: "not found is permanent", status: 404, transient: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := newEngine(t, http.HandlerFunc(
				func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tc.status)
				},
			))

			_, err := eng.Compile(context.Background(), "cid-2", "Class A {}")
			require.Error(t, err)
			assert.Equal(t, tc.transient, api.IsTransient(err))
		})
	}
}

func TestEngineRunTests(t *testing.T) {
	eng := newEngine(t, http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"tests":[
				{"name":"t1","status":"PASS"},
				{"name":"t2","status":"FAIL","message":"boom"}
			]}`))
		},
	))

	report, err := eng.RunTests(context.Background(), "cid-3", "")
	require.NoError(t, err)
	assert.False(t, report.Passed)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, "boom", report.Results[1].Message)
}

func TestEngineTransformSchemaRejectsUnknownFormat(t *testing.T) {
	eng := newEngine(t, http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	))

	_, err := eng.TransformSchema(context.Background(), "cid-4", "yaml", "model::A")
	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestSDLCCreateReviewIsIdempotent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"r-1","title":"t","webURL":"u"}`))
		},
	))
	t.Cleanup(server.Close)

	sdlc, err := client.NewSDLCClient(client.Options{
		Service: "sdlc",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, client.NewMemoryRegistry(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	cid := api.CorrelationID("same-correlation")

	first, err := sdlc.CreateReview(ctx, cid, "p", "w", "title", "desc")
	require.NoError(t, err)
	assert.False(t, first.AlreadyApplied)
	assert.Equal(t, "r-1", first.ReviewID)

	second, err := sdlc.CreateReview(ctx, cid, "p", "w", "title", "desc")
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, 1, calls)

	// a new correlation ID is a new side effect
	_, err = sdlc.CreateReview(ctx, "other", "p", "w", "title", "desc")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSDLCCreateReviewRetriesAfterTransientFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"r-1","title":"t","webURL":"u"}`))
		},
	))
	t.Cleanup(server.Close)

	sdlc, err := client.NewSDLCClient(client.Options{
		Service: "sdlc",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, client.NewMemoryRegistry(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	cid := api.CorrelationID("retry-correlation")

	_, err = sdlc.CreateReview(ctx, cid, "p", "w", "title", "desc")
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))

	// the failed claim is released; the retry re-attempts and opens a
	// real review rather than reporting a deduplicated success
	review, err := sdlc.CreateReview(ctx, cid, "p", "w", "title", "desc")
	require.NoError(t, err)
	assert.False(t, review.AlreadyApplied)
	assert.Equal(t, "r-1", review.ReviewID)
	assert.Equal(t, 2, calls)
}

func TestDepotPublishIsIdempotentPerVersion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"1.0.0","url":"depot://svc"}`))
		},
	))
	t.Cleanup(server.Close)

	depot, err := client.NewDepotClient(client.Options{
		Service: "depot",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, client.NewMemoryRegistry(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = depot.Publish(ctx, "cid-5", "p", "svc", "1.0.0")
	require.NoError(t, err)

	dup, err := depot.Publish(ctx, "cid-5", "p", "svc", "1.0.0")
	require.NoError(t, err)
	assert.True(t, dup.AlreadyApplied)
	assert.Equal(t, 1, calls)
}

func TestDepotPublishRetriesAfterTransientFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"1.0.0","url":"depot://svc"}`))
		},
	))
	t.Cleanup(server.Close)

	depot, err := client.NewDepotClient(client.Options{
		Service: "depot",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, client.NewMemoryRegistry(time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	cid := api.CorrelationID("retry-correlation")

	_, err = depot.Publish(ctx, cid, "p", "svc", "1.0.0")
	require.Error(t, err)
	assert.True(t, api.IsTransient(err))

	pub, err := depot.Publish(ctx, cid, "p", "svc", "1.0.0")
	require.NoError(t, err)
	assert.False(t, pub.AlreadyApplied)
	assert.Equal(t, "depot://svc", pub.URL)
	assert.Equal(t, 2, calls)
}
