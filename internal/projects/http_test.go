package projects_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/projects"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

const testUser = "user-1"

// fakeProjectService is an in-memory stand-in for the upstream project
// service, speaking its page envelope.
type fakeProjectService struct {
	items     []upstream.Project
	forbidDel bool
	nextID    int
}

func (f *fakeProjectService) handler() http.Handler {
	const base = "/project-service/v1/projects"
	mux := http.NewServeMux()

	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			size, _ := strconv.Atoi(r.URL.Query().Get("size"))
			f.writePage(w, page, size)
		case http.MethodPost:
			var in upstream.ProjectInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			f.nextID++
			p := upstream.Project{ID: fmt.Sprintf("p-%d", f.nextID), Name: in.Name, Description: in.Description}
			f.items = append([]upstream.Project{p}, f.items...)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc(base+"/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, base+"/")
		idx := -1
		for i, p := range f.items {
			if p.ID == id {
				idx = i
				break
			}
		}
		switch r.Method {
		case http.MethodGet:
			if idx < 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(f.items[idx])
		case http.MethodPut:
			if idx < 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var in upstream.ProjectInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			f.items[idx].Name = in.Name
			f.items[idx].Description = in.Description
			_ = json.NewEncoder(w).Encode(f.items[idx])
		case http.MethodDelete:
			if f.forbidDel {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if idx < 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			f.items = append(f.items[:idx], f.items[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func (f *fakeProjectService) writePage(w http.ResponseWriter, page, size int) {
	total := len(f.items)
	totalPages := (total + size - 1) / size
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	_ = json.NewEncoder(w).Encode(upstream.Page[upstream.Project]{
		Content:       f.items[start:end],
		TotalPages:    totalPages,
		TotalElements: int64(total),
		Size:          size,
		Number:        page,
	})
}

func seedProjects(n int) []upstream.Project {
	out := make([]upstream.Project, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, upstream.Project{ID: fmt.Sprintf("p-%d", i), Name: fmt.Sprintf("Project %d", i)})
	}
	return out
}

type listBody struct {
	Content       []upstream.Project `json:"content"`
	Page          int                `json:"page"`
	TotalPages    int                `json:"totalPages"`
	TotalElements int64              `json:"totalElements"`
}

func do(r *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func setup(t *testing.T, fake *fakeProjectService) (*gin.Engine, *notify.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := upstream.NewClient(srv.URL, 2*time.Second, 2*time.Second, auth.RawTokenFromContext, zap.NewNop())
	bus := notify.NewBus(nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, testUser) })
	projects.Register(r.Group("/projects"), client, bus, nil)
	return r, bus
}

func TestListClampsOutOfRangePage(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(12)}
	r, _ := setup(t, fake)

	w := do(r, http.MethodGet, "/projects?page=7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 2, body.TotalPages)
	assert.Len(t, body.Content, 3)
}

func TestCreateReturnsFreshFirstPage(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(3)}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPost, "/projects", `{"name":"Checkout","description":"payments"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Project upstream.Project `json:"project"`
		List    listBody         `json:"list"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Checkout", body.Project.Name)
	assert.Equal(t, 0, body.List.Page)
	require.NotEmpty(t, body.List.Content)
	assert.Equal(t, "Checkout", body.List.Content[0].Name)

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastSuccess, toasts[0].Type)
}

func TestCreateRejectsBlankName(t *testing.T) {
	fake := &fakeProjectService{}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPost, "/projects", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, bus.Active(testUser))
}

func TestDeleteLastItemOnPageStepsBack(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(10)}
	r, _ := setup(t, fake)

	// page 1 holds only p-9; deleting it should land the caller on page 0
	w := do(r, http.MethodDelete, "/projects/p-9?page=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Deleted bool     `json:"deleted"`
		List    listBody `json:"list"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Deleted)
	assert.Equal(t, 0, body.List.Page)
	assert.Len(t, body.List.Content, 9)
}

func TestDeleteWithItemsRemainingKeepsPage(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(12)}
	r, _ := setup(t, fake)

	w := do(r, http.MethodDelete, "/projects/p-10?page=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Deleted bool     `json:"deleted"`
		List    listBody `json:"list"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Deleted)
	assert.Equal(t, 1, body.List.Page)
	assert.Len(t, body.List.Content, 2)
}

func TestDeleteForbiddenExplainsDependencies(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(1), forbidDel: true}
	r, bus := setup(t, fake)

	w := do(r, http.MethodDelete, "/projects/p-0", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "dependencies")

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastError, toasts[0].Type)
}

func TestGetUnknownProjectIs404(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(1)}
	r, _ := setup(t, fake)

	w := do(r, http.MethodGet, "/projects/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateConfirmsWithCanonicalRecord(t *testing.T) {
	fake := &fakeProjectService{items: seedProjects(2)}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPut, "/projects/p-1", `{"name":"Renamed","description":"d"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got upstream.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Renamed", got.Name)

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastSuccess, toasts[0].Type)
}
