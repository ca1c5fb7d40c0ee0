package upstream

import (
	"context"
	"net/http"
)

const useCaseBase = "/use-case-service/v1/projects"

type UseCase struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// UseCaseGenerationInput names the domain object and attributes the use cases
// should be generated around.
type UseCaseGenerationInput struct {
	DomainObject string   `json:"domainObject"`
	Attributes   []string `json:"attributes"`
}

// UseCaseInput is the update payload.
type UseCaseInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func useCasePath(projectID, requirementID string) string {
	return useCaseBase + "/" + projectID + "/requirements/" + requirementID + "/use-cases"
}

// GenerateUseCases runs use-case generation for one domain object. This is a
// long NLP call; it uses the generation timeout. An empty slice is a valid
// result, the caller decides how to present it.
func (c *Client) GenerateUseCases(ctx context.Context, projectID, requirementID string, in UseCaseGenerationInput) ([]UseCase, error) {
	var out []UseCase
	if err := c.doJSON(ctx, c.generationClient, http.MethodPost, useCasePath(projectID, requirementID), nil, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListUseCases(ctx context.Context, projectID, requirementID string) ([]UseCase, error) {
	var out []UseCase
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, useCasePath(projectID, requirementID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUseCase(ctx context.Context, projectID, requirementID, useCaseID string, in UseCaseInput) (*UseCase, error) {
	var out UseCase
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, useCasePath(projectID, requirementID)+"/"+useCaseID, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUseCase(ctx context.Context, projectID, requirementID, useCaseID string) error {
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, useCasePath(projectID, requirementID)+"/"+useCaseID, nil, nil, nil)
}
