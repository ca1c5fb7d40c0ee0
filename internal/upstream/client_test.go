package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokenFrom := func(ctx context.Context) string {
		if tok, ok := ctx.Value(tokenKey{}).(string); ok {
			return tok
		}
		return ""
	}
	return NewClient(srv.URL, 5*time.Second, 10*time.Second, tokenFrom, nil)
}

type tokenKey struct{}

func withToken(tok string) context.Context {
	return context.WithValue(context.Background(), tokenKey{}, tok)
}

func TestListProjectsSendsPagingAndAuth(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/project-service/v1/projects", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "9", r.URL.Query().Get("size"))
		assert.Equal(t, "createdAt", r.URL.Query().Get("orderBy"))
		assert.Equal(t, "desc", r.URL.Query().Get("direction"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(Page[Project]{
			Content:       []Project{{ID: "p1", Name: "Webshop"}},
			TotalPages:    4,
			TotalElements: 30,
			Size:          9,
			Number:        2,
		})
	})

	page, err := c.ListProjects(withToken("tok-123"), 2, 9, "createdAt", "desc")
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalPages)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "Webshop", page.Content[0].Name)
}

func TestDeleteProjectSurfacesStatusError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"project has requirements"}`))
	})

	err := c.DeleteProject(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestListRequirementsDecodesPageableEnvelope(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/requirement-service/v1/projects/p1/requirements", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"id": "r1", "projectId": "p1", "title": "Login", "sourceType": "TEXT"},
			},
			"pageable":      map[string]any{"pageNumber": 0, "pageSize": 9},
			"totalElements": 1,
			"totalPages":    1,
		})
	})

	page, err := c.ListRequirements(context.Background(), "p1", 0, 9)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pageable.PageNumber)
	assert.Equal(t, 9, page.Pageable.PageSize)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "Login", page.Content[0].Title)
}

func TestCreateDomainObjectsBatchDefaultsAttributeTypes(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/domain-object-service/v1/projects/p1/requirements/r1/domain-objects", r.URL.Path)

		var req batchCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		attrs := req.DomainObjectsWithAttributes["Order"]
		require.Len(t, attrs, 2)
		assert.Equal(t, "id", attrs[0].Name)
		assert.Equal(t, "string", attrs[0].DataType)
		assert.Equal(t, "string", attrs[1].DataType)

		json.NewEncoder(w).Encode(batchCreateResponse{
			DomainObjects: []DomainObjectWithAttributes{{ID: "d1", Name: "Order"}},
		})
	})

	created, err := c.CreateDomainObjectsBatch(context.Background(), "p1", "r1", map[string][]string{
		"Order": {"id", "total"},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "Order", created[0].Name)
}

func TestGenerateUseCasesAllowsEmptyResult(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var in UseCaseGenerationInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Order", in.DomainObject)
		assert.Equal(t, []string{"id"}, in.Attributes)
		w.Write([]byte(`[]`))
	})

	ucs, err := c.GenerateUseCases(context.Background(), "p1", "r1", UseCaseGenerationInput{
		DomainObject: "Order", Attributes: []string{"id"},
	})
	require.NoError(t, err)
	assert.Empty(t, ucs)
}

func TestExtractFromTextParsesAllFourSets(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/usecase-service/v1/usecases/text", r.URL.Path)
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Contains(t, in["description"], "customer")

		json.NewEncoder(w).Encode(ExtractionResult{
			DomainObjects:          []string{"Order"},
			SuggestedDomainObjects: []string{"Invoice"},
			Actions:                []string{"place order"},
			SuggestedActions:       []string{"cancel order"},
		})
	})

	res, err := c.ExtractFromText(context.Background(), "a customer places orders")
	require.NoError(t, err)
	assert.False(t, res.Empty())
	assert.Equal(t, []string{"Invoice"}, res.SuggestedDomainObjects)
}

func TestExtractFromPDFUploadsMultipart(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/usecase-service/v1/usecases/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "spec.pdf", header.Filename)

		json.NewEncoder(w).Encode(ExtractionResult{})
	})

	res, err := c.ExtractFromPDF(context.Background(), "spec.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestCreateRequirementPDFSendsTitleField(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Checkout", r.FormValue("title"))
		json.NewEncoder(w).Encode(Requirement{ID: "r1", Title: "Checkout", SourceType: SourcePDF})
	})

	req, err := c.CreateRequirementPDF(context.Background(), "p1", "Checkout", "", "spec.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, SourcePDF, req.SourceType)
}
