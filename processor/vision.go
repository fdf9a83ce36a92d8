package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ocrPrompt = `You are an OCR engine.

Extract ALL readable text from the provided image and return it as plain
text, preserving reading order and line breaks. Do not describe the image,
do not add commentary, do not use markdown. If the image contains no
readable text, return an empty response.`

// OCRClient extracts text from images through a vision-language model served
// over the ollama generate API.
type OCRClient struct {
	url    string
	model  string
	client *http.Client
}

type ocrRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Temperature float32  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Images      []string `json:"images"`
}

type ocrResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOCRClient(url, model string) *OCRClient {
	return &OCRClient{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Recognize sends one image and concatenates the streamed completion.
func (c *OCRClient) Recognize(ctx context.Context, image []byte) (string, error) {
	req := ocrRequest{
		Model:       c.model,
		Prompt:      ocrPrompt,
		Temperature: 0.05,
		MaxTokens:   4096,
		Images:      []string{base64.StdEncoding.EncodeToString(image)},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal ocr request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr backend status %d: %s", resp.StatusCode, string(b))
	}

	decoder := json.NewDecoder(resp.Body)
	var sb strings.Builder
	for {
		var chunk ocrResponse
		if err := decoder.Decode(&chunk); err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("decode ocr response: %w", err)
		}
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return sb.String(), nil
}
