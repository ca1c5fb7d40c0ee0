package upstream

import (
	"context"
	"net/http"
)

const testCaseBase = "/test-case-service/v1/projects"

type TestCase struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// TestCaseGenerationInput carries the use case the test cases derive from.
type TestCaseGenerationInput struct {
	UseCaseName    string `json:"useCaseName"`
	UseCaseContent string `json:"useCaseContent"`
}

// TestCaseInput is the update payload.
type TestCaseInput struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func testCasePath(projectID, requirementID, useCaseID string) string {
	return testCaseBase + "/" + projectID + "/requirements/" + requirementID + "/use-cases/" + useCaseID + "/test-cases"
}

// GenerateTestCases runs test-case generation for one use case with the
// generation timeout.
func (c *Client) GenerateTestCases(ctx context.Context, projectID, requirementID, useCaseID string, in TestCaseGenerationInput) (*TestCase, error) {
	var out TestCase
	if err := c.doJSON(ctx, c.generationClient, http.MethodPost, testCasePath(projectID, requirementID, useCaseID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTestCases(ctx context.Context, projectID, requirementID, useCaseID string) ([]TestCase, error) {
	var out []TestCase
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, testCasePath(projectID, requirementID, useCaseID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateTestCase(ctx context.Context, projectID, requirementID, useCaseID, testCaseID string, in TestCaseInput) (*TestCase, error) {
	var out TestCase
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, testCasePath(projectID, requirementID, useCaseID)+"/"+testCaseID, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTestCase(ctx context.Context, projectID, requirementID, useCaseID, testCaseID string) error {
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, testCasePath(projectID, requirementID, useCaseID)+"/"+testCaseID, nil, nil, nil)
}
