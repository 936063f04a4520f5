package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// SDLCClient calls the version-control lifecycle service
	SDLCClient struct {
		*httpClient
		idem IdempotencyRegistry
	}

	createReviewRequest struct {
		WorkspaceID string `json:"workspaceId"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}

	reviewResponse struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		WebURL string `json:"webURL"`
	}
)

// NewSDLCClient creates a client for the SDLC service. Mutating operations
// are deduplicated through the idempotency registry
func NewSDLCClient(
	opts Options, idem IdempotencyRegistry,
) (*SDLCClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBaseURL, opts.Service)
	}
	return &SDLCClient{
		httpClient: newHTTPClient(opts),
		idem:       idem,
	}, nil
}

// ListProjects lists all projects known to the SDLC service
func (c *SDLCClient) ListProjects(
	ctx context.Context, cid api.CorrelationID,
) ([]api.Project, error) {
	var projects []api.Project
	err := c.do(ctx, cid, "GET", "/api/projects", nil, nil, &projects)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateWorkspace creates a workspace within a project. Repeat calls for
// the same correlation ID after a success are no-ops; a failed call
// releases its claim so a retry re-attempts
func (c *SDLCClient) CreateWorkspace(
	ctx context.Context, cid api.CorrelationID, projectID, workspaceID string,
) (*api.Workspace, error) {
	key := IdempotencyKey(cid, "create_workspace:"+workspaceID)
	fresh, err := c.idem.Begin(ctx, key)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &api.Workspace{
			ProjectID:      projectID,
			WorkspaceID:    workspaceID,
			AlreadyApplied: true,
		}, nil
	}

	path := fmt.Sprintf(
		"/api/projects/%s/workspaces/%s", projectID, workspaceID,
	)
	if err := c.do(ctx, cid, "POST", path, nil, nil, nil); err != nil {
		releaseKey(c.idem, key)
		return nil, err
	}
	return &api.Workspace{
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
	}, nil
}

// GetEntities fetches all model elements in a workspace
func (c *SDLCClient) GetEntities(
	ctx context.Context, cid api.CorrelationID, projectID, workspaceID string,
) ([]api.Entity, error) {
	path := fmt.Sprintf(
		"/api/projects/%s/workspaces/%s/entities", projectID, workspaceID,
	)
	var entities []api.Entity
	if err := c.do(ctx, cid, "GET", path, nil, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// UpsertEntities replaces or inserts model elements in a workspace
func (c *SDLCClient) UpsertEntities(
	ctx context.Context, cid api.CorrelationID,
	projectID, workspaceID string, entities []api.Entity,
) error {
	path := fmt.Sprintf(
		"/api/projects/%s/workspaces/%s/entities", projectID, workspaceID,
	)
	body := map[string]any{
		"replace":  false,
		"entities": entities,
	}
	return c.do(ctx, cid, "POST", path, nil, body, nil)
}

// CreateReview opens a change request for a workspace. Repeat calls for
// the same correlation ID must not open a second review; once one has
// succeeded they return the deduplicated marker instead. A failed call
// releases its claim so a retry re-attempts
func (c *SDLCClient) CreateReview(
	ctx context.Context, cid api.CorrelationID,
	projectID, workspaceID, title, description string,
) (*api.Review, error) {
	key := IdempotencyKey(cid, "open_review")
	fresh, err := c.idem.Begin(ctx, key)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return &api.Review{Title: title, AlreadyApplied: true}, nil
	}

	path := fmt.Sprintf("/api/projects/%s/reviews", projectID)
	req := &createReviewRequest{
		WorkspaceID: workspaceID,
		Title:       title,
		Description: description,
	}
	var resp reviewResponse
	if err := c.do(ctx, cid, "POST", path, nil, req, &resp); err != nil {
		releaseKey(c.idem, key)
		return nil, err
	}
	return &api.Review{
		ReviewID: resp.ID,
		Title:    resp.Title,
		WebURL:   resp.WebURL,
	}, nil
}

// ListRevisions lists workspace revisions, most recent first
func (c *SDLCClient) ListRevisions(
	ctx context.Context, cid api.CorrelationID, projectID, workspaceID string,
) ([]string, error) {
	path := fmt.Sprintf(
		"/api/projects/%s/workspaces/%s/revisions", projectID, workspaceID,
	)
	var revisions []struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, cid, "GET", path, nil, nil, &revisions); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(revisions))
	for _, rev := range revisions {
		ids = append(ids, rev.ID)
	}
	return ids, nil
}

// RevertTo resets a workspace to the given revision
func (c *SDLCClient) RevertTo(
	ctx context.Context, cid api.CorrelationID,
	projectID, workspaceID, revision string,
) error {
	path := fmt.Sprintf(
		"/api/projects/%s/workspaces/%s/revert", projectID, workspaceID,
	)
	query := url.Values{"revision": []string{revision}}
	return c.do(ctx, cid, "POST", path, query, nil, nil)
}
