package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFExtractor pulls the text layer out of a PDF page by page. The document
// is first run through pdfcpu so a corrupt file fails fast with a parse
// error instead of a panic deep inside text extraction.
type PDFExtractor struct{}

func (e *PDFExtractor) ContentTypes() []string {
	return []string{"application/pdf"}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	pageCount, err := pdfcpu.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("pdf validation: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}

	var sb strings.Builder
	var marks []Mark
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not void the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		marks = append(marks, Mark{Offset: len([]rune(sb.String())), Page: i})
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	res := &Result{
		Text:     normalizeWhitespace(sb.String()),
		Marks:    marks,
		Metadata: map[string]any{"page_count": pageCount},
	}
	// Scanned PDFs have pages but almost no text layer.
	if pageCount > 0 && len([]rune(res.Text))/pageCount < 50 {
		res.LowConfidence = true
	}
	return res, nil
}
