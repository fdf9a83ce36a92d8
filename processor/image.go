package processor

import (
	"context"
	"fmt"
)

// ImageExtractor runs OCR on scans and screenshots. A well-formed image with
// no readable text is not an error: it yields empty text and the document
// legitimately ends up with zero chunks.
type ImageExtractor struct {
	OCR *OCRClient
}

func (e *ImageExtractor) ContentTypes() []string {
	return []string{"image/png", "image/jpeg", "image/tiff", "image/bmp"}
}

func (e *ImageExtractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	text, err := e.OCR.Recognize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	res := &Result{Text: normalizeWhitespace(text)}
	// OCR output is inherently best-effort.
	res.LowConfidence = res.Text != "" && len(res.Text) < 32
	return res, nil
}
