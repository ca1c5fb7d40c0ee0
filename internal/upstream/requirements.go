package upstream

import (
	"context"
	"io"
	"net/http"
)

const requirementBase = "/requirement-service/v1/projects"

// Source types of a requirement document.
const (
	SourceText = "TEXT"
	SourcePDF  = "PDF"
)

type Requirement struct {
	ID            string `json:"id"`
	ProjectID     string `json:"projectId"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	SourceType    string `json:"sourceType"`
	SourceContent string `json:"sourceContent,omitempty"`
	SourceFileURL string `json:"sourceFileUrl,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// RequirementInput is the create/update payload.
type RequirementInput struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	SourceType    string `json:"sourceType"`
	SourceContent string `json:"sourceContent,omitempty"`
	SourceFileURL string `json:"sourceFileUrl,omitempty"`
}

func requirementPath(projectID string) string {
	return requirementBase + "/" + projectID + "/requirements"
}

func (c *Client) ListRequirements(ctx context.Context, projectID string, page, size int) (*PageablePage[Requirement], error) {
	var out PageablePage[Requirement]
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, requirementPath(projectID), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsedRequirements returns the requirements that already have generated
// artifacts attached.
func (c *Client) ListUsedRequirements(ctx context.Context, projectID string, page, size int) (*PageablePage[Requirement], error) {
	var out PageablePage[Requirement]
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, requirementPath(projectID)+"/used", pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRequirement(ctx context.Context, projectID, requirementID string) (*Requirement, error) {
	var out Requirement
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, requirementPath(projectID)+"/"+requirementID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRequirement(ctx context.Context, projectID string, in RequirementInput) (*Requirement, error) {
	var out Requirement
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPost, requirementPath(projectID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRequirementPDF uploads a PDF document and creates the requirement
// from it in one call.
func (c *Client) CreateRequirementPDF(ctx context.Context, projectID, title, description, filename string, file io.Reader) (*Requirement, error) {
	fields := map[string]string{"title": title}
	if description != "" {
		fields["description"] = description
	}
	var out Requirement
	if err := c.doMultipart(ctx, c.defaultClient, requirementPath(projectID)+"/pdf", "file", filename, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateRequirement(ctx context.Context, projectID, requirementID string, in RequirementInput) (*Requirement, error) {
	var out Requirement
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, requirementPath(projectID)+"/"+requirementID, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRequirement(ctx context.Context, projectID, requirementID string) error {
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, requirementPath(projectID)+"/"+requirementID, nil, nil, nil)
}
