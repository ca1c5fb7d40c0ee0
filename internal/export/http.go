// Package export builds a consolidated report of one requirement: the
// requirement itself, its domain objects with attributes, the use cases, and
// each use case's test cases.
package export

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

type Handler struct {
	client *upstream.Client
	log    *zap.Logger
}

func Register(rg *gin.RouterGroup, client *upstream.Client, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: client, log: log}
	rg.GET("/export", h.export)
}

type useCaseExport struct {
	upstream.UseCase
	TestCases []upstream.TestCase `json:"testCases"`
}

type report struct {
	Requirement   upstream.Requirement            `json:"requirement"`
	DomainObjects map[string][]upstream.Attribute `json:"domainObjects"`
	UseCases      []useCaseExport                 `json:"useCases"`
}

func (h *Handler) export(c *gin.Context) {
	projectID := c.Param("projectID")
	requirementID := c.Param("requirementID")

	rep, err := h.build(c.Request.Context(), projectID, requirementID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to assemble export"})
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "markdown":
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Requirement.Title+".md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(renderMarkdown(rep)))
	case "json":
		c.JSON(http.StatusOK, rep)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format"})
	}
}

func (h *Handler) build(ctx context.Context, projectID, requirementID string) (*report, error) {
	req, err := h.client.GetRequirement(ctx, projectID, requirementID)
	if err != nil {
		return nil, err
	}

	objects, err := h.client.DomainObjectsForRequirement(ctx, projectID, requirementID)
	if err != nil {
		h.log.Warn("export: domain object lookup failed",
			zap.String("requirement_id", requirementID), zap.Error(err))
		objects = map[string][]upstream.Attribute{}
	}

	useCases, err := h.client.ListUseCases(ctx, projectID, requirementID)
	if err != nil {
		h.log.Warn("export: use case lookup failed",
			zap.String("requirement_id", requirementID), zap.Error(err))
	}

	rep := &report{Requirement: *req, DomainObjects: objects}
	for _, uc := range useCases {
		entry := useCaseExport{UseCase: uc}
		tcs, terr := h.client.ListTestCases(ctx, projectID, requirementID, uc.ID)
		if terr != nil {
			h.log.Warn("export: test case lookup failed",
				zap.String("use_case_id", uc.ID), zap.Error(terr))
		} else {
			entry.TestCases = tcs
		}
		rep.UseCases = append(rep.UseCases, entry)
	}
	return rep, nil
}

func renderMarkdown(rep *report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rep.Requirement.Title)
	if rep.Requirement.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", rep.Requirement.Description)
	}
	if rep.Requirement.SourceContent != "" {
		b.WriteString("## Requirement Text\n\n")
		fmt.Fprintf(&b, "%s\n\n", rep.Requirement.SourceContent)
	}

	if len(rep.DomainObjects) > 0 {
		b.WriteString("## Domain Objects\n\n")
		names := make([]string, 0, len(rep.DomainObjects))
		for name := range rep.DomainObjects {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "### %s\n\n", name)
			for _, attr := range rep.DomainObjects[name] {
				fmt.Fprintf(&b, "- %s (%s)\n", attr.Name, attr.DataType)
			}
			b.WriteString("\n")
		}
	}

	if len(rep.UseCases) > 0 {
		b.WriteString("## Use Cases\n\n")
		for _, uc := range rep.UseCases {
			fmt.Fprintf(&b, "### %s\n\n", uc.Name)
			if uc.Content != "" {
				fmt.Fprintf(&b, "%s\n\n", uc.Content)
			}
			for _, tc := range uc.TestCases {
				fmt.Fprintf(&b, "#### Test Case: %s\n\n", tc.Name)
				if tc.Content != "" {
					fmt.Fprintf(&b, "%s\n\n", tc.Content)
				}
			}
		}
	}

	return b.String()
}
