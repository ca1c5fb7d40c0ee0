package upstream

import (
	"context"
	"net/http"
)

const projectBase = "/project-service/v1/projects"

type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// ProjectInput is the create/update payload.
type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListProjects returns one page of the user's projects, sorted server-side.
func (c *Client) ListProjects(ctx context.Context, page, size int, orderBy, direction string) (*Page[Project], error) {
	q := pageQuery(page, size)
	if orderBy != "" {
		q.Set("orderBy", orderBy)
	}
	if direction != "" {
		q.Set("direction", direction)
	}
	var out Page[Project]
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, projectBase, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var out Project
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, projectBase+"/"+projectID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	var out Project
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPost, projectBase, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, projectID string, in ProjectInput) (*Project, error) {
	var out Project
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, projectBase+"/"+projectID, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject deletes a project. A 403 usually means the project still has
// requirements attached; callers map that to their own message.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, projectBase+"/"+projectID, nil, nil, nil)
}
