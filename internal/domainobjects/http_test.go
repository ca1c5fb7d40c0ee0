package domainobjects_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reqflowly/reqflowly-gateway/internal/auth"
	"github.com/reqflowly/reqflowly-gateway/internal/domainobjects"
	"github.com/reqflowly/reqflowly-gateway/internal/notify"
	"github.com/reqflowly/reqflowly-gateway/internal/session"
	"github.com/reqflowly/reqflowly-gateway/internal/upstream"
)

const testUser = "user-1"

// fakeAttributeService fakes the domain-object service's attribute endpoints
// for one domain object and records the payloads it received.
type fakeAttributeService struct {
	attrs   []upstream.Attribute
	created []upstream.Attribute
	fail    bool
	nextID  int
}

func (f *fakeAttributeService) handler() http.Handler {
	const base = "/domain-object-service/v1/projects/p1/domain-objects/do1/attributes"
	mux := http.NewServeMux()

	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(upstream.Page[upstream.Attribute]{
				Content:       f.attrs,
				TotalPages:    1,
				TotalElements: int64(len(f.attrs)),
				Size:          10,
			})
		case http.MethodPost:
			var in upstream.Attribute
			_ = json.NewDecoder(r.Body).Decode(&in)
			f.nextID++
			in.ID = "a-new"
			in.DomainObjectID = "do1"
			f.created = append(f.created, in)
			f.attrs = append(f.attrs, in)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(in)
		}
	})

	mux.HandleFunc(base+"/", func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, base+"/")
		switch r.Method {
		case http.MethodPut:
			var in upstream.Attribute
			_ = json.NewDecoder(r.Body).Decode(&in)
			in.ID = id
			_ = json.NewEncoder(w).Encode(in)
		case http.MethodDelete:
			for i, a := range f.attrs {
				if a.ID == id {
					f.attrs = append(f.attrs[:i], f.attrs[i+1:]...)
					break
				}
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})

	return mux
}

func setup(t *testing.T, fake *fakeAttributeService) (*gin.Engine, *notify.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := upstream.NewClient(srv.URL, 2*time.Second, 2*time.Second, auth.RawTokenFromContext, zap.NewNop())
	bus := notify.NewBus(nil)
	sessions, err := session.NewRegistry(16, time.Hour, nil, nil)
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(auth.CtxFirebaseUID, testUser) })
	domainobjects.Register(r.Group("/projects/:projectID"), client, sessions, nil, bus, nil)
	return r, bus
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
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

func TestListAttributes(t *testing.T) {
	fake := &fakeAttributeService{attrs: []upstream.Attribute{
		{ID: "a1", Name: "total", DataType: "string"},
		{ID: "a2", Name: "status", DataType: "string"},
	}}
	r, _ := setup(t, fake)

	w := do(r, http.MethodGet, "/projects/p1/domain-objects/do1/attributes", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Content    []upstream.Attribute `json:"content"`
		TotalPages int                  `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Content, 2)
	assert.Equal(t, 1, body.TotalPages)
}

func TestCreateAttributeDefaultsDataType(t *testing.T) {
	fake := &fakeAttributeService{}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPost, "/projects/p1/domain-objects/do1/attributes", `{"name":"total"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, fake.created, 1)
	assert.Equal(t, "total", fake.created[0].Name)
	assert.Equal(t, "string", fake.created[0].DataType)

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastSuccess, toasts[0].Type)
}

func TestCreateAttributeRejectsBlankName(t *testing.T) {
	fake := &fakeAttributeService{}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPost, "/projects/p1/domain-objects/do1/attributes", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, fake.created)
	assert.Empty(t, bus.Active(testUser))
}

func TestUpdateAttribute(t *testing.T) {
	fake := &fakeAttributeService{}
	r, _ := setup(t, fake)

	w := do(r, http.MethodPut, "/projects/p1/domain-objects/do1/attributes/a1", `{"name":"grandTotal","dataType":"number"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got upstream.Attribute
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "grandTotal", got.Name)
	assert.Equal(t, "number", got.DataType)
}

func TestDeleteAttribute(t *testing.T) {
	fake := &fakeAttributeService{attrs: []upstream.Attribute{{ID: "a1", Name: "total"}}}
	r, bus := setup(t, fake)

	w := do(r, http.MethodDelete, "/projects/p1/domain-objects/do1/attributes/a1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, fake.attrs)

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastSuccess, toasts[0].Type)
}

func TestAttributeUpstreamFailureIsBadGatewayWithErrorToast(t *testing.T) {
	fake := &fakeAttributeService{fail: true}
	r, bus := setup(t, fake)

	w := do(r, http.MethodPost, "/projects/p1/domain-objects/do1/attributes", `{"name":"total"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	toasts := bus.Active(testUser)
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.ToastError, toasts[0].Type)
}
