package processor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docsearch/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPlainText(t *testing.T) {
	p := New(nil)
	res, err := p.Process(context.Background(), []byte("Hello\r\n\r\n\r\n\r\nWorld"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "Hello\n\nWorld", res.Text)
	assert.Equal(t, "text/plain", res.Metadata["content_type"])
	assert.False(t, res.LowConfidence)
}

func TestProcessEmptyPayloadRejected(t *testing.T) {
	p := New(nil)
	_, err := p.Process(context.Background(), nil, "text/plain")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeValidation, pe.Code)
}

func TestProcessUnsupportedType(t *testing.T) {
	p := New(nil)
	_, err := p.Process(context.Background(), []byte("PK..."), "application/zip")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUnsupportedFormat, pe.Code)
	assert.Contains(t, pe.Message, "application/zip")
}

func TestProcessSniffsWhenTypeMissing(t *testing.T) {
	p := New(nil)
	res, err := p.Process(context.Background(), []byte("plain old text with no declared type"), "")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "plain old text")
}

func TestProcessHTML(t *testing.T) {
	p := New(nil)
	html := `<html><body><h1>Release Notes</h1><p>Fixed the importer.</p></body></html>`
	res, err := p.Process(context.Background(), []byte(html), "text/html")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Release Notes")
	assert.Contains(t, res.Text, "Fixed the importer.")
	assert.NotContains(t, res.Text, "<h1>")
}

func TestProcessImageWithoutOCRIsUnsupported(t *testing.T) {
	p := New(nil)
	_, err := p.Process(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUnsupportedFormat, pe.Code)
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ContentTypes() []string { return []string{"application/x-stub"} }

func (s *stubExtractor) Extract(context.Context, []byte) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Text: s.text}, nil
}

func TestProcessFlagsLowDensityExtraction(t *testing.T) {
	p := New(nil)
	p.register(&stubExtractor{text: "tiny"})

	big := bytes.Repeat([]byte{0x42}, 64*1024)
	res, err := p.Process(context.Background(), big, "application/x-stub")
	require.NoError(t, err)
	assert.True(t, res.LowConfidence)
}

func TestProcessExtractorErrorBecomesParseFailure(t *testing.T) {
	p := New(nil)
	p.register(&stubExtractor{err: assert.AnError})

	_, err := p.Process(context.Background(), []byte("x"), "application/x-stub")
	pe, ok := types.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeParseFailure, pe.Code)
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "text/plain", normalizeContentType("Text/Plain; charset=UTF-8"))
	assert.Equal(t, "application/pdf", normalizeContentType(" application/pdf "))
	assert.Equal(t, "", normalizeContentType(""))
}

func TestImageExtractorViaOCR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		// The generate API streams one JSON object per token batch.
		w.Write([]byte(`{"response":"MEETING NOTES ","done":false}` + "\n"))
		w.Write([]byte(`{"response":"page one","done":true}` + "\n"))
	}))
	defer srv.Close()

	ext := &ImageExtractor{OCR: NewOCRClient(srv.URL, "llava")}
	res, err := ext.Extract(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Equal(t, "MEETING NOTES page one", res.Text)
}

func TestOCRClientSurfacesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOCRClient(srv.URL, "llava").Recognize(context.Background(), []byte{1})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "500"))
}
