package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docsearch/chunker"
	"docsearch/engine"
	"docsearch/ingest"
	"docsearch/model"
	"docsearch/processor"
	"docsearch/store"
	"docsearch/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()
	emb := model.NewMockEmbedder(32)
	chk, err := chunker.New(200, 40)
	require.NoError(t, err)

	coordinator := ingest.New(processor.New(nil), chk, emb, st, 5*time.Second, 1)
	eng := engine.New(st, emb)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	v1 := app.Group("/api/v1")
	v1.Post("/documents", NewIngestHandler(coordinator).HandleIngest)
	v1.Get("/documents", NewDocumentHandler(st).HandleList)
	v1.Delete("/documents/:id", NewDocumentHandler(st).HandleDelete)
	v1.Post("/query", NewQueryHandler(eng).HandleQuery)
	app.Get("/check/healthy", NewCheckHandler(st, emb).HandleHealthy)

	return app, st
}

func multipartUpload(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[types.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Storage)
	assert.Equal(t, "ok", health.Embedder)
}

func TestIngestEndpoint(t *testing.T) {
	app, st := newTestApp(t)

	req := multipartUpload(t, "notes.txt",
		"The rollout plan needs sign-off from the platform team before Thursday.",
		map[string]string{"uploaded_by": "alice", "content_type": "text/plain"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[types.IngestResponse](t, resp)
	assert.True(t, body.Success)
	assert.NotEqual(t, uuid.Nil, body.DocumentID)
	assert.Equal(t, types.SourceUpload, body.Source)
	assert.Equal(t, "notes.txt", body.Filename)
	assert.Greater(t, body.ChunkCount, 0)
	assert.Equal(t, 1, st.DocumentCount())
}

func TestIngestEndpointIsIdempotent(t *testing.T) {
	app, st := newTestApp(t)
	content := "Same file posted twice."

	first, err := app.Test(multipartUpload(t, "dup.txt", content, nil))
	require.NoError(t, err)
	second, err := app.Test(multipartUpload(t, "dup.txt", content, nil))
	require.NoError(t, err)

	a := decode[types.IngestResponse](t, first)
	b := decode[types.IngestResponse](t, second)
	assert.Equal(t, a.DocumentID, b.DocumentID)
	assert.Equal(t, 1, st.DocumentCount())
}

func TestIngestEndpointWithTaskOrigin(t *testing.T) {
	app, _ := newTestApp(t)

	req := multipartUpload(t, "estimate.txt", "revised estimates attached", map[string]string{
		"source":     "planner",
		"source_id":  "att-1",
		"task_id":    "task-7",
		"task_title": "Revise estimates",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[types.IngestResponse](t, resp)
	assert.Equal(t, types.SourcePlanner, body.Source)
}

func TestIngestEndpointRejectsUnknownSource(t *testing.T) {
	app, _ := newTestApp(t)

	req := multipartUpload(t, "x.txt", "content", map[string]string{"source": "carrier-pigeon"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestIngestEndpointMissingFile(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestEndpointUnsupportedFormat(t *testing.T) {
	app, _ := newTestApp(t)

	req := multipartUpload(t, "archive.zip", "PK\x03\x04fake", map[string]string{
		"content_type": "application/zip",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestQueryEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.Test(multipartUpload(t, "notes.txt",
		"The quarterly review covers revenue targets and headcount planning.", nil))
	require.NoError(t, err)

	payload := `{"query": "quarterly review revenue", "top_k": 3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[types.QueryResponse](t, resp)
	require.NotEmpty(t, body.Results)
	assert.Contains(t, body.Results[0].Content, "quarterly review")
	assert.Equal(t, "notes.txt", body.Results[0].Filename)
}

func TestQueryEndpointBadBody(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryEndpointMissingQueryField(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"top_k": 5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestListAndDeleteDocuments(t *testing.T) {
	app, st := newTestApp(t)

	resp, err := app.Test(multipartUpload(t, "doomed.txt", "soon to be retracted", nil))
	require.NoError(t, err)
	ingested := decode[types.IngestResponse](t, resp)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[struct {
		Total int `json:"total"`
	}](t, resp)
	assert.Equal(t, 1, listing.Total)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete,
		fmt.Sprintf("/api/v1/documents/%s", ingested.DocumentID), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, st.DocumentCount())
}

func TestDeleteDocumentInvalidID(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListDocumentsUnknownSourceFilter(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents?source=fax", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
