package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// DepotClient calls the publish/registry service
	DepotClient struct {
		*httpClient
		idem IdempotencyRegistry
	}

	publishRequest struct {
		Version     string `json:"version"`
		ServicePath string `json:"servicePath,omitempty"`
	}

	publishResponse struct {
		Version string `json:"version"`
		URL     string `json:"url"`
	}
)

// NewDepotClient creates a client for the depot service
func NewDepotClient(
	opts Options, idem IdempotencyRegistry,
) (*DepotClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBaseURL, opts.Service)
	}
	return &DepotClient{
		httpClient: newHTTPClient(opts),
		idem:       idem,
	}, nil
}

// ListProjects lists all projects known to the depot
func (c *DepotClient) ListProjects(
	ctx context.Context, cid api.CorrelationID,
) ([]api.Project, error) {
	var projects []api.Project
	err := c.do(ctx, cid, "GET", "/api/projects", nil, nil, &projects)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// Search queries the depot for models matching the query
func (c *DepotClient) Search(
	ctx context.Context, cid api.CorrelationID, query string,
) ([]api.Entity, error) {
	q := url.Values{"search": []string{query}}
	var entities []api.Entity
	err := c.do(ctx, cid, "GET", "/api/entities/search", q, nil, &entities)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ListVersions lists the published versions of a service, most recent
// first
func (c *DepotClient) ListVersions(
	ctx context.Context, cid api.CorrelationID, servicePath string,
) ([]api.ServiceVersion, error) {
	path := "/api/services/" + url.PathEscape(servicePath) + "/versions"
	var versions []api.ServiceVersion
	if err := c.do(ctx, cid, "GET", path, nil, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// Publish releases a project version to the depot. Repeat calls for the
// same correlation ID and version must not publish twice; a failed call
// releases its claim so a retry re-attempts
func (c *DepotClient) Publish(
	ctx context.Context, cid api.CorrelationID,
	projectID, servicePath, version string,
) (*api.Publication, error) {
	key := IdempotencyKey(cid, "publish_service:"+servicePath+"@"+version)
	fresh, err := c.idem.Begin(ctx, key)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &api.Publication{
			ProjectID:      projectID,
			ServicePath:    servicePath,
			Version:        version,
			AlreadyApplied: true,
		}, nil
	}

	path := fmt.Sprintf("/api/projects/%s/publish", projectID)
	req := &publishRequest{Version: version, ServicePath: servicePath}
	var resp publishResponse
	if err := c.do(ctx, cid, "POST", path, nil, req, &resp); err != nil {
		releaseKey(c.idem, key)
		return nil, err
	}
	return &api.Publication{
		ProjectID:   projectID,
		ServicePath: servicePath,
		Version:     resp.Version,
		URL:         resp.URL,
	}, nil
}
