package client

import (
	"context"
	"fmt"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// EngineClient calls the compile/test engine service
	EngineClient struct {
		*httpClient
	}

	compileRequest struct {
		Code        string `json:"code"`
		ProjectID   string `json:"projectId,omitempty"`
		WorkspaceID string `json:"workspaceId,omitempty"`
	}

	compileResponse struct {
		Status string             `json:"status"`
		Errors []api.CompileError `json:"errors"`
	}

	testRunResponse struct {
		Tests []struct {
			Name    string `json:"name"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"tests"`
	}

	schemaResponse struct {
		Content string `json:"content"`
	}

	codegenResponse struct {
		Code string `json:"code"`
	}
)

const (
	compileStatusSuccess = "SUCCESS"
	testStatusPass       = "PASS"
)

// SchemaFormats the engine can render a class into
const (
	SchemaFormatJSON     = "jsonSchema"
	SchemaFormatAvro     = "avro"
	SchemaFormatProtobuf = "protobuf"
)

// NewEngineClient creates a client for the engine service
func NewEngineClient(opts Options) (*EngineClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBaseURL, opts.Service)
	}
	return &EngineClient{httpClient: newHTTPClient(opts)}, nil
}

// Compile submits source for compilation. A failed compile is reported in
// the result, not as an error; errors are reserved for transport and
// protocol failures
func (c *EngineClient) Compile(
	ctx context.Context, cid api.CorrelationID, pure string,
) (*api.CompileResult, error) {
	req := &compileRequest{Code: pure}
	var resp compileResponse
	err := c.do(
		ctx, cid, "POST", "/api/pure/v1/compilation/compile",
		nil, req, &resp,
	)
	if err != nil {
		return nil, err
	}

	result := &api.CompileResult{
		OK:     resp.Status == compileStatusSuccess,
		Errors: resp.Errors,
	}
	if result.Errors == nil {
		result.Errors = []api.CompileError{}
	}
	return result, nil
}

// RunTests executes the engine test suite, optionally scoped to a path
func (c *EngineClient) RunTests(
	ctx context.Context, cid api.CorrelationID, testPath string,
) (*api.TestReport, error) {
	req := map[string]string{}
	if testPath != "" {
		req["testPath"] = testPath
	}

	var resp testRunResponse
	err := c.do(ctx, cid, "POST", "/api/pure/v1/test/run", nil, req, &resp)
	if err != nil {
		return nil, err
	}

	report := &api.TestReport{
		Passed:  true,
		Results: make([]api.TestResult, 0, len(resp.Tests)),
	}
	for _, test := range resp.Tests {
		passed := test.Status == testStatusPass
		if !passed {
			report.Passed = false
		}
		report.Results = append(report.Results, api.TestResult{
			Test:    test.Name,
			Passed:  passed,
			Message: test.Message,
		})
	}
	return report, nil
}

// TransformSchema renders a class in the requested interchange format
func (c *EngineClient) TransformSchema(
	ctx context.Context, cid api.CorrelationID, format, classPath string,
) (*api.SchemaArtifact, error) {
	endpoints := map[string]string{
		SchemaFormatJSON:     "/api/pure/v1/schemaGeneration/jsonSchema",
		SchemaFormatAvro:     "/api/pure/v1/schemaGeneration/avro",
		SchemaFormatProtobuf: "/api/pure/v1/schemaGeneration/protobuf",
	}

	endpoint, ok := endpoints[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported schema format %q",
			api.ErrValidation, format)
	}

	req := map[string]any{
		"classPath":           classPath,
		"includeDependencies": false,
	}
	var resp schemaResponse
	if err := c.do(ctx, cid, "POST", endpoint, nil, req, &resp); err != nil {
		return nil, err
	}

	return &api.SchemaArtifact{Format: format, Content: resp.Content}, nil
}

// GenerateServiceCode produces a service implementation for the target
// platform
func (c *EngineClient) GenerateServiceCode(
	ctx context.Context, cid api.CorrelationID, servicePath, target string,
) (string, error) {
	req := map[string]string{
		"servicePath": servicePath,
		"target":      target,
	}
	var resp codegenResponse
	err := c.do(
		ctx, cid, "POST", "/api/pure/v1/codeGeneration/generate",
		nil, req, &resp,
	)
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}
