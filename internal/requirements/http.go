// Package requirements exposes requirement documents and the session-backed
// list/detail view over them: paging, selection, edit buffers, optimistic
// reconciliation, plus the used-requirements listing with per-card previews.
package requirements

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/preview"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/view"
)

// PageSize is how many requirement cards fit on one page.
const PageSize = 9

const previewFailureMsg = "Failed to load domain objects"

type Handler struct {
	client   *upstream.Client
	sessions *session.Registry
	previews *preview.Cache
	bus      *notify.Bus
	log      *zap.Logger
}

func Register(rg *gin.RouterGroup, client *upstream.Client, sessions *session.Registry, previews *preview.Cache, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, sessions: sessions, previews: previews, bus: bus, log: log}

	rg.GET("", h.list)
	rg.GET("/used", h.listUsed)
	rg.POST("", h.createText)
	rg.POST("/pdf", h.createPDF)
	rg.GET("/:requirementID", h.get)
	rg.PUT("/:requirementID", h.update)
	rg.PUT("/:requirementID/content", h.updateContent)
	rg.DELETE("/:requirementID", h.delete)

	rg.GET("/view", h.viewState)
	rg.POST("/view/page", h.viewPage)
	rg.POST("/view/select", h.viewSelect)
	rg.POST("/view/back", h.viewBack)
	rg.POST("/view/edit/start", h.editStart)
	rg.POST("/view/edit/field", h.editField)
	rg.POST("/view/edit/cancel", h.editCancel)
	rg.POST("/view/edit/save", h.editSave)
}

func (h *Handler) reqView(c *gin.Context) (*session.RequirementView, string) {
	projectID := c.Param("projectID")
	sess := h.sessions.Get(auth.FirebaseUID(c))
	return sess.RequirementView(projectID), projectID
}

func (h *Handler) pageFetch(projectID string) view.PageFetch[upstream.Requirement] {
	return func(ctx context.Context, page int) ([]upstream.Requirement, int, error) {
		res, err := h.client.ListRequirements(ctx, projectID, page, PageSize)
		if err != nil {
			return nil, 0, err
		}
		return res.Content, res.TotalPages, nil
	}
}

type viewResponse struct {
	Items       []upstream.Requirement           `json:"items"`
	Page        int                              `json:"page"`
	TotalPages  int                              `json:"totalPages"`
	PageControl view.PageControl                 `json:"pageControl"`
	View        view.State[upstream.Requirement] `json:"view"`
}

func (h *Handler) viewSnapshot(rv *session.RequirementView) viewResponse {
	page, totalPages := rv.Col.Page()
	return viewResponse{
		Items:       rv.Col.Items(),
		Page:        page,
		TotalPages:  totalPages,
		PageControl: view.Window(page, totalPages, view.DefaultWindowSize),
		View:        rv.Ctrl.State(),
	}
}

// list loads one page and makes it the session's current page.
func (h *Handler) list(c *gin.Context) {
	rv, projectID := h.reqView(c)
	page := queryInt(c, "page", 0)
	if page < 0 {
		page = 0
	}

	items, totalPages, err := h.pageFetch(projectID)(c.Request.Context(), page)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirements"})
		return
	}
	if clamped := view.ClampPage(page, totalPages); clamped != page {
		items, totalPages, err = h.pageFetch(projectID)(c.Request.Context(), clamped)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirements"})
			return
		}
		page = clamped
	}

	rv.Col.SetPage(items, page, totalPages)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

type usedCard struct {
	Requirement upstream.Requirement    `json:"requirement"`
	Preview     view.AuxState[[]string] `json:"preview"`
}

// listUsed returns the requirements that already have generated artifacts,
// each with its domain-object name preview. Previews load independently per
// card: one slow or failed card never blocks the others. Results are cached
// in Redis so the next page load skips the fan-out.
func (h *Handler) listUsed(c *gin.Context) {
	rv, projectID := h.reqView(c)
	page := queryInt(c, "page", 0)

	res, err := h.client.ListUsedRequirements(c.Request.Context(), projectID, page, PageSize)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load used requirements"})
		return
	}

	var wg sync.WaitGroup
	for _, req := range res.Content {
		if !rv.Previews.Begin(req.ID) {
			continue // already settled or in flight
		}
		wg.Add(1)
		go func(req upstream.Requirement) {
			defer wg.Done()
			h.loadPreview(c.Request.Context(), rv, projectID, req.ID)
		}(req)
	}
	wg.Wait()

	cards := make([]usedCard, 0, len(res.Content))
	for _, req := range res.Content {
		state, _ := rv.Previews.Get(req.ID)
		cards = append(cards, usedCard{Requirement: req, Preview: state})
	}
	c.JSON(http.StatusOK, gin.H{
		"content":     cards,
		"page":        page,
		"totalPages":  res.TotalPages,
		"pageControl": view.Window(page, res.TotalPages, view.DefaultWindowSize),
	})
}

func (h *Handler) loadPreview(ctx context.Context, rv *session.RequirementView, projectID, requirementID string) {
	if entry, ok, err := h.previews.Get(ctx, projectID, requirementID); err == nil && ok {
		rv.Previews.Resolve(requirementID, entry.DomainObjectNames)
		return
	}

	objects, err := h.client.DomainObjectsForRequirement(ctx, projectID, requirementID)
	if err != nil {
		h.log.Warn("preview fetch failed",
			zap.String("requirement_id", requirementID), zap.Error(err))
		rv.Previews.Fail(requirementID, previewFailureMsg)
		return
	}
	names := make([]string, 0, len(objects))
	for name := range objects {
		names = append(names, name)
	}
	rv.Previews.Resolve(requirementID, names)
	if err := h.previews.Put(ctx, projectID, requirementID, names); err != nil {
		h.log.Warn("preview cache write failed", zap.Error(err))
	}
}

type createTextReq struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	SourceContent string `json:"sourceContent"`
}

func (h *Handler) createText(c *gin.Context) {
	rv, projectID := h.reqView(c)
	userID := auth.FirebaseUID(c)

	var req createTextReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement title is required"})
		return
	}
	// text requirements with nothing to analyze are rejected before any
	// upstream call is made
	if strings.TrimSpace(req.SourceContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement content is required"})
		return
	}

	created, err := rv.Pipe.Create(c.Request.Context(), func(ctx context.Context) (upstream.Requirement, error) {
		r, cerr := h.client.CreateRequirement(ctx, projectID, upstream.RequirementInput{
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			SourceType:    upstream.SourceText,
			SourceContent: req.SourceContent,
		})
		if cerr != nil {
			return upstream.Requirement{}, cerr
		}
		return *r, nil
	}, view.CreateRefetchFirstPage, h.pageFetch(projectID))
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to create requirement.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create requirement"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement created successfully.", 0)
	c.JSON(http.StatusCreated, gin.H{"requirement": created, "list": h.viewSnapshot(rv)})
}

func (h *Handler) createPDF(c *gin.Context) {
	rv, projectID := h.reqView(c)
	userID := auth.FirebaseUID(c)

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement title is required"})
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a PDF file is required"})
		return
	}
	defer file.Close()

	created, err := rv.Pipe.Create(c.Request.Context(), func(ctx context.Context) (upstream.Requirement, error) {
		r, cerr := h.client.CreateRequirementPDF(ctx, projectID, title, c.PostForm("description"), header.Filename, file)
		if cerr != nil {
			return upstream.Requirement{}, cerr
		}
		return *r, nil
	}, view.CreateRefetchFirstPage, h.pageFetch(projectID))
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to upload requirement document.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload requirement document"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement created successfully.", 0)
	c.JSON(http.StatusCreated, gin.H{"requirement": created, "list": h.viewSnapshot(rv)})
}

func (h *Handler) get(c *gin.Context) {
	projectID := c.Param("projectID")
	r, err := h.client.GetRequirement(c.Request.Context(), projectID, c.Param("requirementID"))
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "requirement not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirement"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type updateReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) update(c *gin.Context) {
	rv, projectID := h.reqView(c)
	requirementID := c.Param("requirementID")
	userID := auth.FirebaseUID(c)

	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement title is required"})
		return
	}

	current, err := h.client.GetRequirement(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirement"})
		return
	}

	err = rv.Pipe.Update(c.Request.Context(), requirementID,
		func(ctx context.Context) error {
			_, uerr := h.client.UpdateRequirement(ctx, projectID, requirementID, upstream.RequirementInput{
				Title:         strings.TrimSpace(req.Title),
				Description:   req.Description,
				SourceType:    current.SourceType,
				SourceContent: current.SourceContent,
				SourceFileURL: current.SourceFileURL,
			})
			return uerr
		},
		func(ctx context.Context, id string) (upstream.Requirement, error) {
			r, rerr := h.client.GetRequirement(ctx, projectID, id)
			if rerr != nil {
				return upstream.Requirement{}, rerr
			}
			return *r, nil
		},
		func(r upstream.Requirement) upstream.Requirement {
			r.Title = strings.TrimSpace(req.Title)
			r.Description = req.Description
			return r
		},
	)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update requirement.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update requirement"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement updated successfully.", 0)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

type contentReq struct {
	SourceContent string `json:"sourceContent"`
}

// updateContent edits the document body, a separate flow from title and
// description edits.
func (h *Handler) updateContent(c *gin.Context) {
	rv, projectID := h.reqView(c)
	requirementID := c.Param("requirementID")
	userID := auth.FirebaseUID(c)

	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SourceContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement content is required"})
		return
	}

	current, err := h.client.GetRequirement(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirement"})
		return
	}

	err = rv.Pipe.Update(c.Request.Context(), requirementID,
		func(ctx context.Context) error {
			_, uerr := h.client.UpdateRequirement(ctx, projectID, requirementID, upstream.RequirementInput{
				Title:         current.Title,
				Description:   current.Description,
				SourceType:    current.SourceType,
				SourceContent: req.SourceContent,
				SourceFileURL: current.SourceFileURL,
			})
			return uerr
		},
		func(ctx context.Context, id string) (upstream.Requirement, error) {
			r, rerr := h.client.GetRequirement(ctx, projectID, id)
			if rerr != nil {
				return upstream.Requirement{}, rerr
			}
			return *r, nil
		},
		func(r upstream.Requirement) upstream.Requirement {
			r.SourceContent = req.SourceContent
			return r
		},
	)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update requirement content.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update requirement content"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement content updated.", 0)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

func (h *Handler) delete(c *gin.Context) {
	rv, projectID := h.reqView(c)
	requirementID := c.Param("requirementID")
	userID := auth.FirebaseUID(c)

	err := rv.Pipe.Delete(c.Request.Context(), requirementID,
		func(ctx context.Context, id string) error {
			return h.client.DeleteRequirement(ctx, projectID, id)
		},
		h.pageFetch(projectID),
	)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to delete requirement.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete requirement"})
		return
	}

	rv.Previews.Forget(requirementID)
	if cerr := h.previews.Invalidate(c.Request.Context(), projectID, requirementID); cerr != nil {
		h.log.Warn("preview invalidation failed", zap.Error(cerr))
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement deleted successfully.", 0)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

// View state machine endpoints.

func (h *Handler) viewState(c *gin.Context) {
	rv, _ := h.reqView(c)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

type pageReq struct {
	Page int `json:"page"`
}

func (h *Handler) viewPage(c *gin.Context) {
	rv, projectID := h.reqView(c)

	var req pageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	_, totalPages := rv.Col.Page()
	target := view.ClampPage(req.Page, totalPages)
	items, totalPages, err := h.pageFetch(projectID)(c.Request.Context(), target)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load page"})
		return
	}
	rv.Col.SetPage(items, target, totalPages)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

type selectReq struct {
	ID string `json:"id"`
}

func (h *Handler) viewSelect(c *gin.Context) {
	rv, projectID := h.reqView(c)

	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	err := rv.Ctrl.Select(c.Request.Context(), req.ID, func(ctx context.Context, id string) (upstream.Requirement, error) {
		r, ferr := h.client.GetRequirement(ctx, projectID, id)
		if ferr != nil {
			return upstream.Requirement{}, ferr
		}
		return *r, nil
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "failed to load requirement",
			"view":  h.viewSnapshot(rv),
		})
		return
	}
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

func (h *Handler) viewBack(c *gin.Context) {
	rv, _ := h.reqView(c)
	rv.Ctrl.Back()
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

func (h *Handler) editStart(c *gin.Context) {
	rv, _ := h.reqView(c)
	err := rv.Ctrl.StartEdit(func(r upstream.Requirement) map[string]string {
		return map[string]string{"title": r.Title, "description": r.Description}
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

type fieldReq struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) editField(c *gin.Context) {
	rv, _ := h.reqView(c)

	var req fieldReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Field == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := rv.Ctrl.SetField(req.Field, req.Value); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

func (h *Handler) editCancel(c *gin.Context) {
	rv, _ := h.reqView(c)
	rv.Ctrl.CancelEdit()
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

func (h *Handler) editSave(c *gin.Context) {
	rv, projectID := h.reqView(c)
	userID := auth.FirebaseUID(c)

	err := rv.Ctrl.Save(c.Request.Context(), view.SaveFuncs[upstream.Requirement]{
		Validate: func(fields map[string]string) error {
			if strings.TrimSpace(fields["title"]) == "" {
				return errTitleRequired
			}
			return nil
		},
		Update: func(ctx context.Context, current upstream.Requirement, fields map[string]string) error {
			_, uerr := h.client.UpdateRequirement(ctx, projectID, current.ID, upstream.RequirementInput{
				Title:         strings.TrimSpace(fields["title"]),
				Description:   fields["description"],
				SourceType:    current.SourceType,
				SourceContent: current.SourceContent,
				SourceFileURL: current.SourceFileURL,
			})
			return uerr
		},
		Refetch: func(ctx context.Context, id string) (upstream.Requirement, error) {
			r, rerr := h.client.GetRequirement(ctx, projectID, id)
			if rerr != nil {
				return upstream.Requirement{}, rerr
			}
			return *r, nil
		},
		Merge: func(current upstream.Requirement, fields map[string]string) upstream.Requirement {
			current.Title = strings.TrimSpace(fields["title"])
			current.Description = fields["description"]
			return current
		},
	})
	if err != nil {
		switch err {
		case errTitleRequired:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "view": h.viewSnapshot(rv)})
		case view.ErrSaveInFlight:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case view.ErrNotEditing:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			// the edit buffer keeps the user's input for a retry
			h.bus.Push(userID, notify.ToastError, "Failed to save requirement.", 0)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to save requirement", "view": h.viewSnapshot(rv)})
		}
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Requirement updated successfully.", 0)
	c.JSON(http.StatusOK, h.viewSnapshot(rv))
}

var errTitleRequired = errors.New("requirement title is required")

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return n
}
