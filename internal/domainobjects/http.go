// Package domainobjects exposes the extraction review workflow and the
// persisted domain-object CRUD. Extraction runs seed an in-session review;
// the user curates it name by name; finalizing persists the kept objects
// upstream in one batch.
package domainobjects

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/extraction"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/preview"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
	"github.com/reqflowly/reqflowly-gateway/internal/view"
)

// PageSize is how many domain objects one page of the project-wide list holds.
const PageSize = 10

const emptyExtractionMsg = "No domain objects could be extracted from this requirement."

type Handler struct {
	client   *upstream.Client
	sessions *session.Registry
	previews *preview.Cache
	bus      *notify.Bus
	log      *zap.Logger
}

// Register wires the routes onto the project-scoped group.
func Register(rg *gin.RouterGroup, client *upstream.Client, sessions *session.Registry, previews *preview.Cache, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, sessions: sessions, previews: previews, bus: bus, log: log}

	rg.POST("/requirements/:requirementID/extraction", h.run)
	rg.GET("/requirements/:requirementID/extraction", h.state)
	rg.POST("/requirements/:requirementID/extraction/toggle", h.toggle)
	rg.POST("/requirements/:requirementID/extraction/accept", h.accept)
	rg.POST("/requirements/:requirementID/extraction/add", h.add)
	rg.POST("/requirements/:requirementID/extraction/attributes", h.setAttributes)
	rg.POST("/requirements/:requirementID/extraction/finalize", h.finalize)

	rg.GET("/requirements/:requirementID/domain-objects", h.listForRequirement)
	rg.PUT("/requirements/:requirementID/domain-objects/:domainObjectID", h.update)
	rg.DELETE("/requirements/:requirementID/domain-objects/:domainObjectID", h.delete)

	rg.GET("/domain-objects", h.listForProject)

	rg.GET("/domain-objects/:domainObjectID/attributes", h.listAttributes)
	rg.POST("/domain-objects/:domainObjectID/attributes", h.createAttribute)
	rg.PUT("/domain-objects/:domainObjectID/attributes/:attributeID", h.updateAttribute)
	rg.DELETE("/domain-objects/:domainObjectID/attributes/:attributeID", h.deleteAttribute)
}

func (h *Handler) scope(c *gin.Context) (sess *session.Session, projectID, requirementID string) {
	sess = h.sessions.Get(auth.FirebaseUID(c))
	return sess, c.Param("projectID"), c.Param("requirementID")
}

func toCandidates(names []string) []extraction.Candidate {
	out := make([]extraction.Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, extraction.Candidate{Name: n})
	}
	return out
}

type reviewSnapshot struct {
	Objects struct {
		Active    []extraction.Candidate `json:"active"`
		Suggested []extraction.Candidate `json:"suggested"`
		Removed   []extraction.Candidate `json:"removed"`
	} `json:"domainObjects"`
	Actions struct {
		Active    []extraction.Candidate `json:"active"`
		Suggested []extraction.Candidate `json:"suggested"`
		Removed   []extraction.Candidate `json:"removed"`
	} `json:"actions"`
}

func snapshot(rev *extraction.Review) reviewSnapshot {
	var s reviewSnapshot
	s.Objects.Active, s.Objects.Suggested, s.Objects.Removed = rev.Objects.Snapshot()
	s.Actions.Active, s.Actions.Suggested, s.Actions.Removed = rev.Actions.Snapshot()
	return s
}

// run executes extraction over the requirement's text and replaces any
// previous review state for it.
func (h *Handler) run(c *gin.Context) {
	sess, projectID, requirementID := h.scope(c)
	userID := auth.FirebaseUID(c)

	req, err := h.client.GetRequirement(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load requirement"})
		return
	}
	if strings.TrimSpace(req.SourceContent) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requirement has no analyzable content"})
		return
	}

	res, err := h.client.ExtractFromText(c.Request.Context(), req.SourceContent)
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Extraction failed.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "extraction failed"})
		return
	}

	rev := extraction.NewReview(
		toCandidates(res.DomainObjects),
		toCandidates(res.SuggestedDomainObjects),
		toCandidates(res.Actions),
		toCandidates(res.SuggestedActions),
	)
	sess.SetReview(projectID, requirementID, rev)

	if res.Empty() {
		// an empty run is a valid outcome, not an error
		h.bus.Push(userID, notify.ToastWarning, emptyExtractionMsg, 0)
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

func (h *Handler) review(c *gin.Context) (*extraction.Review, bool) {
	sess, projectID, requirementID := h.scope(c)
	rev := sess.Review(projectID, requirementID)
	if rev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no extraction has run for this requirement"})
		return nil, false
	}
	return rev, true
}

func (h *Handler) state(c *gin.Context) {
	rev, ok := h.review(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

type nameReq struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "domainObject" (default) or "action"
}

func (r nameReq) set(rev *extraction.Review) *extraction.ReviewSet {
	if r.Kind == "action" {
		return rev.Actions
	}
	return rev.Objects
}

func (h *Handler) toggle(c *gin.Context) {
	rev, ok := h.review(c)
	if !ok {
		return
	}
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if _, err := req.set(rev).Toggle(req.Name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

func (h *Handler) accept(c *gin.Context) {
	rev, ok := h.review(c)
	if !ok {
		return
	}
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := req.set(rev).Accept(req.Name); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

type addReq struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
	Kind       string   `json:"kind"`
}

func (h *Handler) add(c *gin.Context) {
	rev, ok := h.review(c)
	if !ok {
		return
	}
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	set := rev.Objects
	if req.Kind == "action" {
		set = rev.Actions
	}
	if err := set.Add(req.Name, req.Attributes); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

type attributesReq struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

func (h *Handler) setAttributes(c *gin.Context) {
	rev, ok := h.review(c)
	if !ok {
		return
	}
	var req attributesReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := rev.Objects.SetAttributes(req.Name, req.Attributes); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

// finalize persists the kept domain objects upstream in one batch and
// retires the review.
func (h *Handler) finalize(c *gin.Context) {
	sess, projectID, requirementID := h.scope(c)
	userID := auth.FirebaseUID(c)

	rev := sess.Review(projectID, requirementID)
	if rev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no extraction has run for this requirement"})
		return
	}

	active := rev.Objects.Active()
	if len(active) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no domain objects selected"})
		return
	}
	objects := make(map[string][]string, len(active))
	for _, cand := range active {
		objects[cand.Name] = cand.Attributes
	}

	created, err := h.client.CreateDomainObjectsBatch(c.Request.Context(), projectID, requirementID, objects)
	if err != nil {
		// the review stays so the user's curation is not lost
		h.bus.Push(userID, notify.ToastError, "Failed to save domain objects.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to save domain objects"})
		return
	}

	sess.DropReview(projectID, requirementID)
	if cerr := h.previews.Invalidate(c.Request.Context(), projectID, requirementID); cerr != nil {
		h.log.Warn("preview invalidation failed", zap.Error(cerr))
	}

	h.bus.Push(userID, notify.ToastSuccess, "Domain objects saved successfully.", 0)
	c.JSON(http.StatusCreated, gin.H{"domainObjects": created})
}

func (h *Handler) listForRequirement(c *gin.Context) {
	_, projectID, requirementID := h.scope(c)
	objects, err := h.client.DomainObjectsForRequirement(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load domain objects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"domainObjectsWithAttributes": objects})
}

func (h *Handler) listForProject(c *gin.Context) {
	projectID := c.Param("projectID")
	page := queryInt(c, "page", 0)

	res, err := h.client.ListDomainObjects(c.Request.Context(), projectID, page, PageSize)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load domain objects"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content":     res.Content,
		"page":        res.Number,
		"totalPages":  res.TotalPages,
		"pageControl": view.Window(res.Number, res.TotalPages, view.DefaultWindowSize),
	})
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) update(c *gin.Context) {
	_, projectID, requirementID := h.scope(c)
	userID := auth.FirebaseUID(c)

	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain object name is required"})
		return
	}

	updated, err := h.client.UpdateDomainObject(c.Request.Context(), projectID, requirementID, c.Param("domainObjectID"), strings.TrimSpace(req.Name))
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update domain object.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update domain object"})
		return
	}

	if cerr := h.previews.Invalidate(c.Request.Context(), projectID, requirementID); cerr != nil {
		h.log.Warn("preview invalidation failed", zap.Error(cerr))
	}
	h.bus.Push(userID, notify.ToastSuccess, "Domain object updated.", 0)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) delete(c *gin.Context) {
	_, projectID, requirementID := h.scope(c)
	userID := auth.FirebaseUID(c)

	if err := h.client.DeleteDomainObject(c.Request.Context(), projectID, requirementID, c.Param("domainObjectID")); err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to delete domain object.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete domain object"})
		return
	}

	if cerr := h.previews.Invalidate(c.Request.Context(), projectID, requirementID); cerr != nil {
		h.log.Warn("preview invalidation failed", zap.Error(cerr))
	}
	h.bus.Push(userID, notify.ToastSuccess, "Domain object deleted.", 0)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Attribute endpoints, scoped under one domain object.

func (h *Handler) listAttributes(c *gin.Context) {
	projectID := c.Param("projectID")
	domainObjectID := c.Param("domainObjectID")
	page := queryInt(c, "page", 0)

	res, err := h.client.ListAttributes(c.Request.Context(), projectID, domainObjectID, page, PageSize)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load attributes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content":     res.Content,
		"page":        res.Number,
		"totalPages":  res.TotalPages,
		"pageControl": view.Window(res.Number, res.TotalPages, view.DefaultWindowSize),
	})
}

type attributeReq struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

func (r attributeReq) toInput() upstream.Attribute {
	dt := strings.TrimSpace(r.DataType)
	if dt == "" {
		dt = "string"
	}
	return upstream.Attribute{Name: strings.TrimSpace(r.Name), DataType: dt}
}

func (h *Handler) createAttribute(c *gin.Context) {
	projectID := c.Param("projectID")
	domainObjectID := c.Param("domainObjectID")
	userID := auth.FirebaseUID(c)

	var req attributeReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attribute name is required"})
		return
	}

	created, err := h.client.CreateAttribute(c.Request.Context(), projectID, domainObjectID, req.toInput())
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to create attribute.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create attribute"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Attribute created.", 0)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateAttribute(c *gin.Context) {
	projectID := c.Param("projectID")
	domainObjectID := c.Param("domainObjectID")
	userID := auth.FirebaseUID(c)

	var req attributeReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "attribute name is required"})
		return
	}

	updated, err := h.client.UpdateAttribute(c.Request.Context(), projectID, domainObjectID, c.Param("attributeID"), req.toInput())
	if err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to update attribute.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to update attribute"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Attribute updated.", 0)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteAttribute(c *gin.Context) {
	projectID := c.Param("projectID")
	domainObjectID := c.Param("domainObjectID")
	userID := auth.FirebaseUID(c)

	if err := h.client.DeleteAttribute(c.Request.Context(), projectID, domainObjectID, c.Param("attributeID")); err != nil {
		h.bus.Push(userID, notify.ToastError, "Failed to delete attribute.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete attribute"})
		return
	}

	h.bus.Push(userID, notify.ToastSuccess, "Attribute deleted.", 0)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return n
}
