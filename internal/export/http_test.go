package export

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

func fakeServices(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/requirement-service/v1/projects/p1/requirements/r1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(upstream.Requirement{
			ID: "r1", ProjectID: "p1", Title: "Checkout",
			Description:   "Payment flow",
			SourceType:    upstream.SourceText,
			SourceContent: "Customers pay for their orders.",
		})
	})
	mux.HandleFunc("/domain-object-service/v1/projects/p1/requirements/r1/domain-objects", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"domainObjectsWithAttributes": map[string][]upstream.Attribute{
				"Order": {{Name: "total", DataType: "string"}},
			},
		})
	})
	mux.HandleFunc("/use-case-service/v1/projects/p1/requirements/r1/use-cases", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]upstream.UseCase{
			{ID: "uc1", Name: "Place Order", Content: "Customer places an order."},
		})
	})
	mux.HandleFunc("/test-case-service/v1/projects/p1/requirements/r1/use-cases/uc1/test-cases", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]upstream.TestCase{
			{ID: "tc1", Name: "Happy Path", Content: "Order is placed."},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := fakeServices(t)
	client := upstream.NewClient(srv.URL, 2*time.Second, 2*time.Second, auth.RawTokenFromContext, zap.NewNop())

	r := gin.New()
	Register(r.Group("/projects/:projectID/requirements/:requirementID"), client, nil)
	return r
}

func TestExportJSON(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p1/requirements/r1/export", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rep report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, "Checkout", rep.Requirement.Title)
	assert.Contains(t, rep.DomainObjects, "Order")
	require.Len(t, rep.UseCases, 1)
	assert.Equal(t, "Place Order", rep.UseCases[0].Name)
	require.Len(t, rep.UseCases[0].TestCases, 1)
	assert.Equal(t, "Happy Path", rep.UseCases[0].TestCases[0].Name)
}

func TestExportMarkdown(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p1/requirements/r1/export?format=markdown", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")

	body := w.Body.String()
	assert.Contains(t, body, "# Checkout")
	assert.Contains(t, body, "### Order")
	assert.Contains(t, body, "- total (string)")
	assert.Contains(t, body, "### Place Order")
	assert.Contains(t, body, "#### Test Case: Happy Path")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p1/requirements/r1/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkdownRendersWithoutOptionalSections(t *testing.T) {
	md := renderMarkdown(&report{Requirement: upstream.Requirement{Title: "Bare"}})
	assert.Equal(t, "# Bare\n\n", md)
}
