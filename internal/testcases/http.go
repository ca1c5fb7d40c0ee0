// Package testcases exposes test-case generation and CRUD for one use case.
package testcases

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

type Handler struct {
	client *upstream.Client
	bus    *notify.Bus
	log    *zap.Logger
}

// Register wires the routes onto the use-case-scoped group. generate is
// additionally guarded by the generation rate limiter.
func Register(rg *gin.RouterGroup, generate gin.HandlerFunc, client *upstream.Client, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, bus: bus, log: log}

	rg.POST("", generate, h.generate)
	rg.GET("", h.list)
	rg.PUT("/:testCaseID", h.update)
	rg.DELETE("/:testCaseID", h.delete)
}

func scope(c *gin.Context) (projectID, requirementID, useCaseID string) {
	return c.Param("projectID"), c.Param("requirementID"), c.Param("useCaseID")
}

type generateReq struct {
	UseCaseName    string `json:"useCaseName"`
	UseCaseContent string `json:"useCaseContent"`
}

func (h *Handler) generate(c *gin.Context) {
	projectID, requirementID, useCaseID := scope(c)
	userID := auth.FirebaseUID(c)

	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UseCaseName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use case name is required"})
		return
	}

	tc, err := h.client.GenerateTestCases(c.Request.Context(), projectID, requirementID, useCaseID, upstream.TestCaseGenerationInput{
		UseCaseName:    req.UseCaseName,
		UseCaseContent: req.UseCaseContent,
	})
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Test case generation failed.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "test case generation failed"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Test cases generated successfully.", 0)
	c.JSON(http.StatusOK, gin.H{"testCase": tc})
}

func (h *Handler) list(c *gin.Context) {
	projectID, requirementID, useCaseID := scope(c)

	list, err := h.client.ListTestCases(c.Request.Context(), projectID, requirementID, useCaseID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load test cases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"testCases": list})
}

type testCaseReq struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handler) update(c *gin.Context) {
	projectID, requirementID, useCaseID := scope(c)
	userID := auth.FirebaseUID(c)

	var req testCaseReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test case name is required"})
		return
	}

	updated, err := h.client.UpdateTestCase(c.Request.Context(), projectID, requirementID, useCaseID, c.Param("testCaseID"), upstream.TestCaseInput{
		Name:    strings.TrimSpace(req.Name),
		Content: req.Content,
	})
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update test case.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update test case"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Test case updated successfully.", 0)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) delete(c *gin.Context) {
	projectID, requirementID, useCaseID := scope(c)
	userID := auth.FirebaseUID(c)

	if err := h.client.DeleteTestCase(c.Request.Context(), projectID, requirementID, useCaseID, c.Param("testCaseID")); err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to delete test case.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete test case"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Test case deleted successfully.", 0)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
