package processor

import (
	"context"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// TextExtractor handles formats that are already plain text.
type TextExtractor struct{}

func (e *TextExtractor) ContentTypes() []string {
	return []string{
		"text/plain",
		"text/markdown",
		"text/x-markdown",
		"text/csv",
		"application/json",
	}
}

func (e *TextExtractor) Extract(_ context.Context, data []byte) (*Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return &Result{Text: normalizeWhitespace(text)}, nil
}

// HTMLExtractor converts markup to markdown so headings and lists survive
// as readable plain text.
type HTMLExtractor struct{}

func (e *HTMLExtractor) ContentTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (e *HTMLExtractor) Extract(_ context.Context, data []byte) (*Result, error) {
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return nil, err
	}
	return &Result{Text: normalizeWhitespace(md)}, nil
}

// normalizeWhitespace collapses runs of blank lines and trims trailing
// spaces, keeping paragraph breaks for the chunker to snap to.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
