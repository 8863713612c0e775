// Package ollama provides Datasheet-mode extraction and keyword
// augmentation backed by a local Ollama server's multimodal chat API.
package ollama

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

	"github.com/lumenforge/docindex/internal/adapters/driven/extractor/pairparse"
	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var (
	_ driven.ContentExtractor = (*Client)(nil)
	_ driven.KeywordGenerator = (*Client)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2-vision"
	DefaultLLMTimeout = 120 * time.Second
)

const defaultDatasheetPrompt = `Transcribe this datasheet page to plain text, preserving tables as
rows of "label: value". If the page names a model number or part
number alongside another attribute, end your reply with a fenced JSON
array of {"label": ..., "value": ...} objects capturing every such pair.`

const defaultAugmentPrompt = `Given this document excerpt and the surrounding document's context,
list up to 8 additional search keywords or synonyms a user might type to
find this excerpt (part numbers, abbreviation expansions, common
misspellings). Reply with ONLY a comma-separated list, nothing else.

Context: %s

Excerpt:
%s`

// LLMConfig holds configuration for the Ollama-backed Client.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements driven.ContentExtractor (ModeDatasheet) and
// driven.KeywordGenerator against a local Ollama server.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

// chatMessage is the Ollama chat message format. Images is a list of
// base64-encoded image bytes, Ollama's multimodal convention.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMClient creates a new Ollama-backed Client.
func NewLLMClient(cfg LLMConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// Extract satisfies driven.ContentExtractor. Only ModeDatasheet and
// ModeAuto are handled here; Generic/Markdown are the local extractor's job.
func (c *Client) Extract(
	ctx context.Context, content []byte, _ string, mode driven.ExtractMode, prompt string,
) (driven.ExtractResult, error) {
	if mode != driven.ModeDatasheet && mode != driven.ModeAuto {
		return driven.ExtractResult{}, domain.ErrUnsupportedType
	}
	if prompt == "" {
		prompt = defaultDatasheetPrompt
	}

	reply, err := c.chat(ctx, chatMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(content)},
	})
	if err != nil {
		return driven.ExtractResult{}, err
	}

	text, pairs := pairparse.Parse(reply)

	return driven.ExtractResult{
		Text:        text,
		Pairs:       pairs,
		ParseMethod: "ollama_vision",
		PageCount:   1,
	}, nil
}

// Augment satisfies driven.KeywordGenerator.
func (c *Client) Augment(ctx context.Context, chunkText, docContext string) ([]string, error) {
	prompt := fmt.Sprintf(defaultAugmentPrompt, docContext, chunkText)
	reply, err := c.chat(ctx, chatMessage{Role: "user", Content: prompt})
	if err != nil {
		return nil, err
	}
	return splitKeywords(reply), nil
}

func (c *Client) chat(ctx context.Context, msg chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{msg},
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("ollama: send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(body)))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if chatResp.Error != "" {
		return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("ollama: %s", chatResp.Error))
	}

	return chatResp.Message.Content, nil
}

func splitKeywords(reply string) []string {
	fields := strings.Split(reply, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ModelName returns the configured model.
func (c *Client) ModelName() string { return c.model }

// Close releases resources; the HTTP client needs none explicitly.
func (c *Client) Close() error { return nil }
