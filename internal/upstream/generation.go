package upstream

import (
	"context"
	"io"
	"net/http"
)

const generationBase = "/usecase-service/v1/usecases"

// ExtractionResult is what the standalone extraction endpoints return:
// confirmed and suggested domain object names plus confirmed and suggested
// actions, all as plain names.
type ExtractionResult struct {
	DomainObjects          []string `json:"domainObjects"`
	SuggestedDomainObjects []string `json:"suggestedDomainObjects"`
	Actions                []string `json:"actions"`
	SuggestedActions       []string `json:"suggestedActions"`
}

// Empty reports whether the run produced nothing at all, which callers
// surface as a warning rather than an error.
func (r *ExtractionResult) Empty() bool {
	return len(r.DomainObjects) == 0 && len(r.SuggestedDomainObjects) == 0 &&
		len(r.Actions) == 0 && len(r.SuggestedActions) == 0
}

// ExtractFromText runs domain-object and action extraction over a free-text
// description, outside any project scope.
func (c *Client) ExtractFromText(ctx context.Context, description string) (*ExtractionResult, error) {
	var out ExtractionResult
	in := map[string]string{"description": description}
	if err := c.doJSON(ctx, c.generationClient, http.MethodPost, generationBase+"/text", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractFromPDF runs the same extraction over an uploaded PDF.
func (c *Client) ExtractFromPDF(ctx context.Context, filename string, file io.Reader) (*ExtractionResult, error) {
	var out ExtractionResult
	if err := c.doMultipart(ctx, c.generationClient, generationBase+"/upload", "file", filename, file, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
