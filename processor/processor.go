package processor

import (
	"context"
	"strings"

	"docsearch/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// Result is the normalized output of format-specific extraction: plain text
// plus positional metadata. Empty Text is a legal outcome (e.g. a blank
// scan); downstream chunking then produces zero chunks.
type Result struct {
	Text          string
	Marks         []Mark
	LowConfidence bool
	Metadata      map[string]any
}

// Mark anchors structural metadata (page, section) to a rune offset in Text.
// A chunk starting at offset o inherits the latest mark at or before o.
type Mark struct {
	Offset  int
	Page    int
	Section string
}

// Extractor converts raw bytes of one format family into a Result.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Result, error)
	ContentTypes() []string
}

// Processor routes a payload to the extractor registered for its content
// type. Pure transform: no I/O besides what an extractor needs in-memory,
// except OCR which calls the configured vision capability.
type Processor struct {
	extractors map[string]Extractor
	log        *logrus.Entry
}

// lowConfidenceDensity is the minimum extracted-character density
// (runes of text per input byte) below which extraction is flagged, not
// rejected. Binary formats with a healthy text layer sit well above this.
const lowConfidenceDensity = 0.002

func New(ocr *OCRClient) *Processor {
	p := &Processor{
		extractors: make(map[string]Extractor),
		log:        logrus.WithField("component", "processor"),
	}
	p.register(&TextExtractor{})
	p.register(&HTMLExtractor{})
	p.register(&PDFExtractor{})
	p.register(&DocxExtractor{})
	p.register(&XlsxExtractor{})
	if ocr != nil {
		p.register(&ImageExtractor{OCR: ocr})
	}
	return p
}

func (p *Processor) register(e Extractor) {
	for _, ct := range e.ContentTypes() {
		p.extractors[ct] = e
	}
}

// Supported reports whether a content type has a registered extractor.
func (p *Processor) Supported(contentType string) bool {
	_, ok := p.extractors[normalizeContentType(contentType)]
	return ok
}

// Process extracts normalized text from data. The declared content type wins
// when present; otherwise the payload is sniffed.
func (p *Processor) Process(ctx context.Context, data []byte, declared string) (*Result, error) {
	if len(data) == 0 {
		return nil, types.NewValidationFailure("processor", "empty payload")
	}

	ct := normalizeContentType(declared)
	if ct == "" || ct == "application/octet-stream" {
		ct = normalizeContentType(mimetype.Detect(data).String())
		p.log.WithField("content_type", ct).Debug("sniffed content type")
	}

	ext, ok := p.extractors[ct]
	if !ok {
		return nil, types.NewUnsupportedFormat(ct)
	}

	res, err := ext.Extract(ctx, data)
	if err != nil {
		if _, ok := types.AsPipelineError(err); ok {
			return nil, err
		}
		return nil, types.NewParseFailure(ct, err)
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Metadata == nil {
		res.Metadata = make(map[string]any)
	}
	res.Metadata["content_type"] = ct

	if res.Text != "" {
		density := float64(len([]rune(res.Text))) / float64(len(data))
		if density < lowConfidenceDensity {
			res.LowConfidence = true
		}
	}
	return res, nil
}

// normalizeContentType drops parameters and casing: "Text/Plain; charset=x"
// becomes "text/plain".
func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
