package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"baliance.com/gooxml/document"
	"github.com/xuri/excelize/v2"
)

// DocxExtractor reads Word documents paragraph by paragraph.
type DocxExtractor struct{}

func (e *DocxExtractor) ContentTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

func (e *DocxExtractor) Extract(_ context.Context, data []byte) (*Result, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("docx open: %w", err)
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		var line strings.Builder
		for _, r := range p.Runs() {
			line.WriteString(r.Text())
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			sb.WriteString(s)
			sb.WriteString("\n\n")
		}
	}
	return &Result{Text: normalizeWhitespace(sb.String())}, nil
}

// XlsxExtractor flattens workbook cells into tab-separated rows, one section
// mark per sheet.
type XlsxExtractor struct{}

func (e *XlsxExtractor) ContentTypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

func (e *XlsxExtractor) Extract(_ context.Context, data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	var marks []Mark
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("xlsx sheet %q: %w", sheet, err)
		}
		marks = append(marks, Mark{Offset: len([]rune(sb.String())), Section: sheet})
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return &Result{
		Text:     normalizeWhitespace(sb.String()),
		Marks:    marks,
		Metadata: map[string]any{"sheet_count": len(sheets)},
	}, nil
}
