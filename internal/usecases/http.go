// Package usecases exposes use-case generation and the session-backed
// list/detail view over one requirement's use cases.
package usecases

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/view"
)

const emptyGenerationMsg = "No use cases were generated for this domain object."

type Handler struct {
	client   *upstream.Client
	sessions *session.Registry
	bus      *notify.Bus
	log      *zap.Logger
}

// Register wires the routes onto the requirement-scoped group. generate is
// additionally guarded by the generation rate limiter.
func Register(rg *gin.RouterGroup, generate gin.HandlerFunc, client *upstream.Client, sessions *session.Registry, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, sessions: sessions, bus: bus, log: log}

	rg.POST("", generate, h.generate)
	rg.GET("", h.list)
	rg.PUT("/:useCaseID", h.update)
	rg.DELETE("/:useCaseID", h.delete)

	rg.GET("/view", h.viewState)
	rg.POST("/view/select", h.viewSelect)
	rg.POST("/view/back", h.viewBack)
	rg.POST("/view/edit/start", h.editStart)
	rg.POST("/view/edit/field", h.editField)
	rg.POST("/view/edit/cancel", h.editCancel)
	rg.POST("/view/edit/save", h.editSave)
}

func (h *Handler) ucView(c *gin.Context) (*session.UseCaseView, string, string) {
	projectID := c.Param("projectID")
	requirementID := c.Param("requirementID")
	sess := h.sessions.Get(auth.FirebaseUID(c))
	return sess.UseCaseView(projectID, requirementID), projectID, requirementID
}

type viewResponse struct {
	Items []upstream.UseCase           `json:"items"`
	View  view.State[upstream.UseCase] `json:"view"`
}

func (h *Handler) snapshot(uv *session.UseCaseView) viewResponse {
	return viewResponse{Items: uv.Col.Items(), View: uv.Ctrl.State()}
}

type generateReq struct {
	DomainObject string   `json:"domainObject"`
	Attributes   []string `json:"attributes"`
}

func (h *Handler) generate(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)
	userID := auth.FirebaseUID(c)

	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DomainObject) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain object is required"})
		return
	}

	generated, err := h.client.GenerateUseCases(c.Request.Context(), projectID, requirementID, upstream.UseCaseGenerationInput{
		DomainObject: req.DomainObject,
		Attributes:   req.Attributes,
	})
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Use case generation failed.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "use case generation failed"})
		return
	}

	if len(generated) == 0 {
		// generation succeeding with nothing to show is a warning, not an error
		h.bus.Push(userID, notify.ToastWarning, emptyGenerationMsg, 0)
	} else {
		h.bus.Push(userID, notify.ToastSuccess, "Use cases generated successfully.", 0)
	}

	// the generated set replaces the whole (unpaginated) list
	uv.Col.SetPage(h.freshList(c, projectID, requirementID, generated), 0, 1)
	c.JSON(http.StatusOK, gin.H{"useCases": generated, "list": h.snapshot(uv)})
}

// freshList re-reads the canonical list after generation; if that read fails
// the generated slice itself is the best available answer.
func (h *Handler) freshList(c *gin.Context, projectID, requirementID string, fallback []upstream.UseCase) []upstream.UseCase {
	list, err := h.client.ListUseCases(c.Request.Context(), projectID, requirementID)
	if err != nil {
		h.log.Warn("use case list refetch failed",
			zap.String("requirement_id", requirementID), zap.Error(err))
		return fallback
	}
	return list
}

func (h *Handler) list(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)

	list, err := h.client.ListUseCases(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load use cases"})
		return
	}
	uv.Col.SetPage(list, 0, 1)
	c.JSON(http.StatusOK, h.snapshot(uv))
}

type useCaseReq struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handler) update(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)
	useCaseID := c.Param("useCaseID")
	userID := auth.FirebaseUID(c)

	var req useCaseReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use case name is required"})
		return
	}

	err := uv.Pipe.Update(c.Request.Context(), useCaseID,
		func(ctx context.Context) error {
			_, uerr := h.client.UpdateUseCase(ctx, projectID, requirementID, useCaseID, upstream.UseCaseInput{
				Name:    strings.TrimSpace(req.Name),
				Content: req.Content,
			})
			return uerr
		},
		nil, // the update response is authoritative enough; merge locally
		func(u upstream.UseCase) upstream.UseCase {
			u.Name = strings.TrimSpace(req.Name)
			u.Content = req.Content
			return u
		},
	)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update use case.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update use case"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Use case updated successfully.", 0)
	c.JSON(http.StatusOK, h.snapshot(uv))
}

func (h *Handler) delete(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)
	useCaseID := c.Param("useCaseID")
	userID := auth.FirebaseUID(c)

	err := uv.Pipe.Delete(c.Request.Context(), useCaseID,
		func(ctx context.Context, id string) error {
			return h.client.DeleteUseCase(ctx, projectID, requirementID, id)
		},
		nil, // unpaginated list, nothing to clamp or reload
	)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to delete use case.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete use case"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Use case deleted successfully.", 0)
	c.JSON(http.StatusOK, h.snapshot(uv))
}

// View state machine endpoints.

func (h *Handler) viewState(c *gin.Context) {
	uv, _, _ := h.ucView(c)
	c.JSON(http.StatusOK, h.snapshot(uv))
}

type selectReq struct {
	ID string `json:"id"`
}

func (h *Handler) viewSelect(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)

	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	err := uv.Ctrl.Select(c.Request.Context(), req.ID, func(ctx context.Context, id string) (upstream.UseCase, error) {
		// the use-case service has no single-item read; the loaded list is
		// the source
		if u, ok := uv.Col.Get(id); ok {
			return u, nil
		}
		list, lerr := h.client.ListUseCases(ctx, projectID, requirementID)
		if lerr != nil {
			return upstream.UseCase{}, lerr
		}
		uv.Col.SetPage(list, 0, 1)
		for _, u := range list {
			if u.ID == id {
				return u, nil
			}
		}
		return upstream.UseCase{}, errors.New("use case not found")
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "use case not found", "view": h.snapshot(uv).View})
		return
	}
	c.JSON(http.StatusOK, h.snapshot(uv))
}

func (h *Handler) viewBack(c *gin.Context) {
	uv, _, _ := h.ucView(c)
	uv.Ctrl.Back()
	c.JSON(http.StatusOK, h.snapshot(uv))
}

func (h *Handler) editStart(c *gin.Context) {
	uv, _, _ := h.ucView(c)
	err := uv.Ctrl.StartEdit(func(u upstream.UseCase) map[string]string {
		return map[string]string{"name": u.Name, "content": u.Content}
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.snapshot(uv))
}

type fieldReq struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *Handler) editField(c *gin.Context) {
	uv, _, _ := h.ucView(c)

	var req fieldReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Field == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := uv.Ctrl.SetField(req.Field, req.Value); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.snapshot(uv))
}

func (h *Handler) editCancel(c *gin.Context) {
	uv, _, _ := h.ucView(c)
	uv.Ctrl.CancelEdit()
	c.JSON(http.StatusOK, h.snapshot(uv))
}

var errNameRequired = errors.New("use case name is required")

func (h *Handler) editSave(c *gin.Context) {
	uv, projectID, requirementID := h.ucView(c)
	userID := auth.FirebaseUID(c)

	err := uv.Ctrl.Save(c.Request.Context(), view.SaveFuncs[upstream.UseCase]{
		Validate: func(fields map[string]string) error {
			if strings.TrimSpace(fields["name"]) == "" {
				return errNameRequired
			}
			return nil
		},
		Update: func(ctx context.Context, current upstream.UseCase, fields map[string]string) error {
			_, uerr := h.client.UpdateUseCase(ctx, projectID, requirementID, current.ID, upstream.UseCaseInput{
				Name:    strings.TrimSpace(fields["name"]),
				Content: fields["content"],
			})
			return uerr
		},
		Merge: func(current upstream.UseCase, fields map[string]string) upstream.UseCase {
			current.Name = strings.TrimSpace(fields["name"])
			current.Content = fields["content"]
			return current
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, errNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "view": h.snapshot(uv).View})
		case errors.Is(err, view.ErrSaveInFlight), errors.Is(err, view.ErrNotEditing):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.bus.Push(userID, notify.ToastError, "Failed to save use case.", 0)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to save use case", "view": h.snapshot(uv).View})
		}
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Use case updated successfully.", 0)
	c.JSON(http.StatusOK, h.snapshot(uv))
}
