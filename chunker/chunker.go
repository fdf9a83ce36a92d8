package chunker

import (
	"fmt"
	"strings"

	"docsearch/processor"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// Piece is one chunk of normalized text before embedding. Indices are
// assigned sequentially from 0 across the whole document.
type Piece struct {
	Index      int
	Text       string
	Offset     int
	Page       int
	Section    string
	TokenCount int
}

// Chunker splits normalized text into overlapping windows of Size runes,
// advancing Size-Overlap per step. Window ends snap to the nearest natural
// breakpoint (paragraph, sentence, word) within a small tolerance so text is
// never cut mid-word, falling back to a hard cut.
type Chunker struct {
	size      int
	overlap   int
	tolerance int
	tokenizer *tiktoken.Tiktoken
}

// cl100k_base matches the tokenizer family of current embedding models.
const encoding = "cl100k_base"

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	// The tokenizer only feeds the token_count metadata; when the encoding
	// table cannot be loaded (offline environments) chunking proceeds with
	// an estimate instead.
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logrus.WithError(err).Warn("tokenizer unavailable, token counts will be estimated")
		enc = nil
	}
	// Snapping may only eat into the non-overlapping part of the window,
	// otherwise the window would stop advancing.
	return &Chunker{
		size:      size,
		overlap:   overlap,
		tolerance: (size - overlap) / 5,
		tokenizer: enc,
	}, nil
}

// Split walks the extraction result and returns ordered pieces. Empty text
// yields no pieces; text shorter than the window yields exactly one.
func (c *Chunker) Split(res *processor.Result) []Piece {
	runes := []rune(res.Text)
	if len(runes) == 0 {
		return nil
	}

	var pieces []Piece
	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.snap(runes, start, end)
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			p := Piece{
				Index:      len(pieces),
				Text:       text,
				Offset:     start,
				TokenCount: c.countTokens(text),
			}
			p.Page, p.Section = locate(res.Marks, start)
			pieces = append(pieces, p)
		}

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}
	return pieces
}

func (c *Chunker) countTokens(text string) int {
	if c.tokenizer != nil {
		return len(c.tokenizer.Encode(text, nil, nil))
	}
	// Rough average of four runes per token for western text.
	return (len([]rune(text)) + 3) / 4
}

// snap moves the window end back to the best breakpoint within tolerance:
// paragraph break, then sentence end, then any whitespace. Returns the hard
// cut position when nothing better exists.
func (c *Chunker) snap(runes []rune, start, end int) int {
	low := end - c.tolerance
	if low <= start {
		return end
	}

	space := -1
	sentence := -1
	for j := end; j > low; j-- {
		prev := runes[j-1]
		if prev == '\n' && j < len(runes) && runes[j] == '\n' {
			return j // paragraph boundary, take it immediately
		}
		if sentence < 0 && (prev == '.' || prev == '!' || prev == '?') && isSpace(runes[j]) {
			sentence = j
		}
		if space < 0 && isSpace(prev) {
			space = j
		}
	}
	if sentence > 0 {
		return sentence
	}
	if space > 0 {
		return space
	}
	return end
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// locate returns the page/section of the latest mark at or before offset.
func locate(marks []processor.Mark, offset int) (int, string) {
	page := 0
	section := ""
	for _, m := range marks {
		if m.Offset > offset {
			break
		}
		if m.Page > 0 {
			page = m.Page
		}
		if m.Section != "" {
			section = m.Section
		}
	}
	return page, section
}
