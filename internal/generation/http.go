// Package generation exposes the standalone extraction endpoints: paste text
// or upload a PDF, get domain objects and actions back, curate them in the
// session without any project scope.
package generation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/extraction"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

const emptyExtractionMsg = "Nothing could be extracted from the provided input."

type Handler struct {
	client   *upstream.Client
	sessions *session.Registry
	bus      *notify.Bus
	log      *zap.Logger
}

// Register wires the routes onto the /generation group. Both extraction
// endpoints are guarded by the generation rate limiter.
func Register(rg *gin.RouterGroup, limit gin.HandlerFunc, client *upstream.Client, sessions *session.Registry, bus *notify.Bus, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, sessions: sessions, bus: bus, log: log}

	rg.POST("/text", limit, h.fromText)
	rg.POST("/pdf", limit, h.fromPDF)
	rg.GET("/review", h.review)
	rg.POST("/review/toggle", h.toggle)
	rg.POST("/review/accept", h.accept)
	rg.POST("/review/add", h.add)
}

func toCandidates(names []string) []extraction.Candidate {
	out := make([]extraction.Candidate, 0, len(names))
	for _, n := range names {
		out = append(out, extraction.Candidate{Name: n})
	}
	return out
}

type reviewSnapshot struct {
	DomainObjects          []extraction.Candidate `json:"domainObjects"`
	SuggestedDomainObjects []extraction.Candidate `json:"suggestedDomainObjects"`
	RemovedDomainObjects   []extraction.Candidate `json:"removedDomainObjects"`
	Actions                []extraction.Candidate `json:"actions"`
	SuggestedActions       []extraction.Candidate `json:"suggestedActions"`
	RemovedActions         []extraction.Candidate `json:"removedActions"`
}

func snapshot(rev *extraction.Review) reviewSnapshot {
	var s reviewSnapshot
	s.DomainObjects, s.SuggestedDomainObjects, s.RemovedDomainObjects = rev.Objects.Snapshot()
	s.Actions, s.SuggestedActions, s.RemovedActions = rev.Actions.Snapshot()
	return s
}

func (h *Handler) seed(c *gin.Context, res *upstream.ExtractionResult) {
	userID := auth.FirebaseUID(c)
	rev := extraction.NewReview(
		toCandidates(res.DomainObjects),
		toCandidates(res.SuggestedDomainObjects),
		toCandidates(res.Actions),
		toCandidates(res.SuggestedActions),
	)
	h.sessions.Get(userID).SetAdhocReview(rev)

	if res.Empty() {
		h.bus.Push(userID, notify.ToastWarning, emptyExtractionMsg, 0)
	}
	c.JSON(http.StatusOK, snapshot(rev))
}

type textReq struct {
	Description string `json:"description"`
}

func (h *Handler) fromText(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	res, err := h.client.ExtractFromText(c.Request.Context(), req.Description)
	if err != nil {
		h.bus.Push(auth.FirebaseUID(c), notify.ToastError, "Error processing text input.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "error processing text input"})
		return
	}
	h.seed(c, res)
}

func (h *Handler) fromPDF(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a PDF file is required"})
		return
	}
	defer file.Close()

	res, err := h.client.ExtractFromPDF(c.Request.Context(), header.Filename, file)
	if err != nil {
		h.bus.Push(auth.FirebaseUID(c), notify.ToastError, "Error processing file upload.", 0)
		c.JSON(http.StatusBadGateway, gin.H{"error": "error processing file upload"})
		return
	}
	h.seed(c, res)
}

func (h *Handler) adhoc(c *gin.Context) (*extraction.Review, bool) {
	rev := h.sessions.Get(auth.FirebaseUID(c)).AdhocReview()
	if rev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no extraction has run yet"})
		return nil, false
	}
	return rev, true
}

func (h *Handler) review(c *gin.Context) {
	rev, ok := h.adhoc(c)
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
	rev, ok := h.adhoc(c)
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
	rev, ok := h.adhoc(c)
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

func (h *Handler) add(c *gin.Context) {
	rev, ok := h.adhoc(c)
	if !ok {
		return
	}
	var req nameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := req.set(rev).Add(req.Name, nil); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot(rev))
}
