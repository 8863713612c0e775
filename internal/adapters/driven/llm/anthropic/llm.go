// Package anthropic provides Datasheet-mode extraction and keyword
// augmentation backed by the Anthropic Messages API.
//
// The package covers two of the core's external collaborators:
// a vision-capable driven.ContentExtractor for ModeDatasheet (the raw
// bytes are expected to already be page images — rendering a PDF to
// images is itself out of scope, left to the caller) and a
// driven.KeywordGenerator that asks the model for extra search terms to
// append to chunk text before indexing.
package anthropic

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
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	anthropicVersion = "2023-06-01"
)

// defaultDatasheetPrompt is used when Extract is called with an empty
// prompt argument.
const defaultDatasheetPrompt = `Transcribe this datasheet page to plain text, preserving tables as
rows of "label: value". If the page names a model number or part
number alongside another attribute, end your reply with a fenced JSON
array of {"label": ..., "value": ...} objects capturing every such pair.`

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements driven.ContentExtractor (ModeDatasheet) and
// driven.KeywordGenerator against the Anthropic Messages API.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

// New creates a new Anthropic-backed Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// contentBlock is one block of an Anthropic message's content array.
type contentBlock struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Source *imgSource `json:"source,omitempty"`
}

type imgSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Extract satisfies driven.ContentExtractor. Only ModeDatasheet and
// ModeAuto are handled here; Generic/Markdown are the local extractor's job.
func (c *Client) Extract(
	ctx context.Context, content []byte, mimeHint string, mode driven.ExtractMode, prompt string,
) (driven.ExtractResult, error) {
	if mode != driven.ModeDatasheet && mode != driven.ModeAuto {
		return driven.ExtractResult{}, domain.ErrUnsupportedType
	}
	if prompt == "" {
		prompt = defaultDatasheetPrompt
	}
	if mimeHint == "" {
		mimeHint = "image/png"
	}

	reply, err := c.send(ctx, []contentBlock{
		{Type: "text", Text: prompt},
		{Type: "image", Source: &imgSource{
			Type:      "base64",
			MediaType: mimeHint,
			Data:      base64.StdEncoding.EncodeToString(content),
		}},
	}, 4096)
	if err != nil {
		return driven.ExtractResult{}, err
	}

	text, pairs := pairparse.Parse(reply)

	return driven.ExtractResult{
		Text:        text,
		Pairs:       pairs,
		ParseMethod: "anthropic_vision",
		PageCount:   1,
	}, nil
}

// defaultAugmentPrompt asks for comma-separated search terms only, so the
// reply can be split on commas without further parsing.
const defaultAugmentPrompt = `Given this document excerpt and the surrounding document's context,
list up to 8 additional search keywords or synonyms a user might type to
find this excerpt (part numbers, abbreviation expansions, common
misspellings). Reply with ONLY a comma-separated list, nothing else.

Context: %s

Excerpt:
%s`

// Augment satisfies driven.KeywordGenerator. A failure here is always
// non-fatal to the caller; Augment just returns the error and lets the
// Index Manager index the chunk without augmentation.
func (c *Client) Augment(ctx context.Context, chunkText, docContext string) ([]string, error) {
	prompt := fmt.Sprintf(defaultAugmentPrompt, docContext, chunkText)
	reply, err := c.send(ctx, []contentBlock{{Type: "text", Text: prompt}}, 256)
	if err != nil {
		return nil, err
	}
	return splitKeywords(reply), nil
}

func (c *Client) send(ctx context.Context, blocks []contentBlock, maxTokens int) (string, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: blocks}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("anthropic: send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("anthropic: status %d", resp.StatusCode))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("anthropic: %s", parsed.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(body)))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
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
