// Package projects exposes the project list and detail operations. Projects
// live in the upstream project service; the gateway adds pagination controls,
// delete-clamp reloading and user feedback.
package projects

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/view"
)

// PageSize is how many project cards fit on one page.
const PageSize = 9

// deleteDependencyMsg is shown when the upstream refuses the delete.
const deleteDependencyMsg = "The project may have dependencies that need to be deleted first."

type Handler struct {
	client *upstream.Client
	bus    *notify.Bus
	log    *zap.Logger
}

func Register(rg *gin.RouterGroup, client *upstream.Client, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, bus: bus, log: log}

	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.GET("/:projectID", h.get)
	rg.PUT("/:projectID", h.update)
	rg.DELETE("/:projectID", h.delete)
}

type pageResponse struct {
	Content     []upstream.Project `json:"content"`
	Page        int                `json:"page"`
	TotalPages  int                `json:"totalPages"`
	TotalCount  int64              `json:"totalElements"`
	PageControl view.PageControl   `json:"pageControl"`
}

func (h *Handler) fetchPage(c *gin.Context, page int, orderBy, direction string) (*pageResponse, error) {
	res, err := h.client.ListProjects(c.Request.Context(), page, PageSize, orderBy, direction)
	if err != nil {
		return nil, err
	}
	// an out-of-range page (stale link, list shrank) is clamped, not an error
	if clamped := view.ClampPage(page, res.TotalPages); clamped != page {
		res, err = h.client.ListProjects(c.Request.Context(), clamped, PageSize, orderBy, direction)
		if err != nil {
			return nil, err
		}
		page = clamped
	}
	return &pageResponse{
		Content:     res.Content,
		Page:        page,
		TotalPages:  res.TotalPages,
		TotalCount:  res.TotalElements,
		PageControl: view.Window(page, res.TotalPages, view.DefaultWindowSize),
	}, nil
}

func (h *Handler) list(c *gin.Context) {
	page := queryInt(c, "page", 0)
	if page < 0 {
		page = 0
	}
	orderBy := c.DefaultQuery("orderBy", "createdAt")
	direction := c.DefaultQuery("direction", "desc")

	resp, err := h.fetchPage(c, page, orderBy, direction)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load projects"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type projectReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) create(c *gin.Context) {
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name is required"})
		return
	}

	userID := auth.FirebaseUID(c)
	p, err := h.client.CreateProject(c.Request.Context(), upstream.ProjectInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to create project.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create project"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Project created successfully.", 0)

	// new projects land on the first page; hand it back so the list is fresh
	resp, ferr := h.fetchPage(c, 0, "createdAt", "desc")
	if ferr != nil {
		c.JSON(http.StatusCreated, gin.H{"project": p})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p, "list": resp})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.client.GetProject(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load project"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) update(c *gin.Context) {
	projectID := c.Param("projectID")
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name is required"})
		return
	}

	userID := auth.FirebaseUID(c)
	in := upstream.ProjectInput{Name: strings.TrimSpace(req.Name), Description: req.Description}

	updated, err := h.client.UpdateProject(c.Request.Context(), projectID, in)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update project.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update project"})
		return
	}

	// confirm with the canonical record; if that read fails the confirmed
	// update is still the answer
	if fresh, ferr := h.client.GetProject(c.Request.Context(), projectID); ferr == nil {
		updated = fresh
	} else {
		h.log.Warn("project refetch after update failed",
			zap.String("project_id", projectID), zap.Error(ferr))
	}

	h.bus.Push(userID, notify.ToastSuccess, "Project updated successfully.", 0)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) delete(c *gin.Context) {
	projectID := c.Param("projectID")
	page := queryInt(c, "page", 0)
	userID := auth.FirebaseUID(c)

	if err := h.client.DeleteProject(c.Request.Context(), projectID); err != nil {
		if upstream.IsStatus(err, http.StatusForbidden) {
			h.bus.Push(userID, notify.ToastError, deleteDependencyMsg, 0)
			c.JSON(http.StatusForbidden, gin.H{"error": deleteDependencyMsg})
			return
		}
		h.bus.Push(userID, notify.ToastError, "Failed to delete project.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete project"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Project deleted successfully.", 0)

	// reload the caller's page; if the delete emptied it, step back one page
	resp, err := h.fetchPage(c, page, "createdAt", "desc")
	if err == nil && len(resp.Content) == 0 && resp.Page > 0 {
		resp, err = h.fetchPage(c, resp.Page-1, "createdAt", "desc")
	}
	if err != nil {
		// the delete itself succeeded; report that even if the reload failed
		c.JSON(http.StatusOK, gin.H{"deleted": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "list": resp})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return n
}
