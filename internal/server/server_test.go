package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/diagram"
	"github.com/tordrt/schemamodeler/internal/llm"
	"github.com/tordrt/schemamodeler/internal/pipeline"
	"github.com/tordrt/schemamodeler/internal/reflector"
	"github.com/tordrt/schemamodeler/internal/schema"
)

const defaultURL = "sqlite://northwind.db"

type fakeCache struct {
	schemas     map[string]*schema.Schema
	err         error
	invalidated []string
}

func (f *fakeCache) Reflect(ctx context.Context, databaseURL string) (*schema.Schema, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.schemas[databaseURL]
	if !ok {
		if _, _, err := db.ParseDatabaseURL(databaseURL); err != nil {
			return nil, err
		}
		return nil, &db.ConnectionError{Dialect: db.DialectSQLite, Err: errors.New("unable to open database file")}
	}
	return s, nil
}

func (f *fakeCache) Invalidate(ctx context.Context, databaseURL string) error {
	f.invalidated = append(f.invalidated, databaseURL)
	return nil
}

type fakeModel struct {
	reply string
	err   error
}

func (m *fakeModel) Name() string { return "fake/model" }

func (m *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	return m.reply, m.err
}

func newTestRouter(t *testing.T, model llm.Model, rendererURL string) (*gin.Engine, *fakeCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := &fakeCache{schemas: map[string]*schema.Schema{
		defaultURL: {Tables: []schema.Table{{
			Name:       "Customers",
			Columns:    []schema.Column{{Name: "CustomerID", Type: "TEXT"}, {Name: "CompanyName", Type: "TEXT"}},
			PrimaryKey: []string{"CustomerID"},
		}}},
	}}

	router := NewRouter(Deps{
		Schemas:            cache,
		Generator:          pipeline.New(cache, model, nil),
		Diagrams:           diagram.NewClient(rendererURL, nil),
		DefaultDatabaseURL: defaultURL,
	})
	return router, cache
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndRoles(t *testing.T) {
	router, _ := newTestRouter(t, nil, "")

	w := doJSON(router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = doJSON(router, http.MethodGet, "/api/v1/roles", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []any{"business_analyst", "data_modeler", "uml_modeler"}, decodeBody(t, w)["roles"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	router, _ := newTestRouter(t, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestGetSchema(t *testing.T) {
	router, _ := newTestRouter(t, nil, "")

	w := doJSON(router, http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var s schema.Schema
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "Customers", s.Tables[0].Name)
}

func TestGetSchemaUnreachableDatabase(t *testing.T) {
	router, _ := newTestRouter(t, nil, "")

	w := doJSON(router, http.MethodGet, "/api/v1/schema?db_url=sqlite://missing.db", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "unable to open database file")
}

func TestGetSchemaInvalidURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	schemas := reflector.New(nil, 0, nil)
	router := NewRouter(Deps{
		Schemas:            schemas,
		Generator:          pipeline.New(schemas, nil, nil),
		Diagrams:           diagram.NewClient("", nil),
		DefaultDatabaseURL: defaultURL,
	})

	tests := []struct {
		name  string
		dbURL string
	}{
		{"unknown scheme", "ftp://host/db"},
		{"sqlite without path", "sqlite://"},
		{"mysql without database", "mysql://root@localhost:3306"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodGet, "/api/v1/schema?db_url="+tt.dbURL, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decodeBody(t, w)["error"], "invalid database URL")
		})
	}
}

func TestInvalidateSchema(t *testing.T) {
	router, cache := newTestRouter(t, nil, "")

	w := doJSON(router, http.MethodDelete, "/api/v1/schema/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{defaultURL}, cache.invalidated)
}

func TestGenerateModel(t *testing.T) {
	router, _ := newTestRouter(t, &fakeModel{reply: "Entity: Customer"}, "")

	w := doJSON(router, http.MethodPost, "/api/v1/models", GenerateRequest{Role: "data_modeler"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "data_modeler", resp.Role)
	assert.Equal(t, "fake/model", resp.Model)
	assert.Equal(t, "Entity: Customer", resp.Text)
}

func TestGenerateDryRun(t *testing.T) {
	router, _ := newTestRouter(t, nil, "")

	w := doJSON(router, http.MethodPost, "/api/v1/models", GenerateRequest{Role: "uml_modeler", DryRun: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Prompt, "CompanyName")
	assert.Empty(t, resp.Text)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		model  llm.Model
		body   any
		status int
	}{
		{"missing role", &fakeModel{}, map[string]string{}, http.StatusBadRequest},
		{"unknown role", &fakeModel{}, GenerateRequest{Role: "accountant"}, http.StatusBadRequest},
		{"no model", nil, GenerateRequest{Role: "data_modeler"}, http.StatusServiceUnavailable},
		{
			"rate limited",
			&fakeModel{err: &llm.ProviderError{Provider: "fake", StatusCode: 429, Err: errors.New("slow down")}},
			GenerateRequest{Role: "data_modeler"},
			http.StatusTooManyRequests,
		},
		{
			"provider auth",
			&fakeModel{err: &llm.ProviderError{Provider: "fake", StatusCode: 401, Err: errors.New("bad key")}},
			GenerateRequest{Role: "data_modeler"},
			http.StatusBadGateway,
		},
		{"unreachable database", &fakeModel{}, GenerateRequest{Role: "data_modeler", DatabaseURL: "sqlite://missing.db"}, http.StatusBadGateway},
		{"invalid database URL", &fakeModel{}, GenerateRequest{Role: "data_modeler", DatabaseURL: "ftp://host/db"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, tt.model, "")
			w := doJSON(router, http.MethodPost, "/api/v1/models", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestRenderDiagram(t *testing.T) {
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	}))
	defer renderer.Close()

	router, _ := newTestRouter(t, nil, renderer.URL)
	w := doJSON(router, http.MethodPost, "/api/v1/diagrams", DiagramRequest{PlantUML: "@startuml\nclass A\n@enduml"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String())
}

func TestRenderDiagramRendererFailure(t *testing.T) {
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "syntax error", http.StatusBadRequest)
	}))
	defer renderer.Close()

	router, _ := newTestRouter(t, nil, renderer.URL)
	w := doJSON(router, http.MethodPost, "/api/v1/diagrams", DiagramRequest{PlantUML: "@startuml\nnope\n@enduml"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/diagrams", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
