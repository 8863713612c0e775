// Package openai provides Datasheet-mode extraction and keyword
// augmentation backed by the OpenAI chat completions API, reusing the
// same sashabaranov/go-openai SDK the embedding adapter depends on.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/sashabaranov/go-openai"

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
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = sdk.GPT4o
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

// LLMConfig holds configuration for the OpenAI-backed Client.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements driven.ContentExtractor (ModeDatasheet) and
// driven.KeywordGenerator using OpenAI's vision-capable chat models.
type Client struct {
	client *sdk.Client
	model  string
}

// NewLLMClient creates a new OpenAI-backed Client.
func NewLLMClient(cfg LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	clientCfg := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: sdk.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
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

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeHint, base64.StdEncoding.EncodeToString(content))

	reply, err := c.chat(ctx, []sdk.ChatCompletionMessage{
		{
			Role: sdk.ChatMessageRoleUser,
			MultiContent: []sdk.ChatMessagePart{
				{Type: sdk.ChatMessagePartTypeText, Text: prompt},
				{Type: sdk.ChatMessagePartTypeImageURL, ImageURL: &sdk.ChatMessageImageURL{URL: dataURL}},
			},
		},
	}, 4096)
	if err != nil {
		return driven.ExtractResult{}, err
	}

	text, pairs := pairparse.Parse(reply)

	return driven.ExtractResult{
		Text:        text,
		Pairs:       pairs,
		ParseMethod: "openai_vision",
		PageCount:   1,
	}, nil
}

// Augment satisfies driven.KeywordGenerator.
func (c *Client) Augment(ctx context.Context, chunkText, docContext string) ([]string, error) {
	prompt := fmt.Sprintf(defaultAugmentPrompt, docContext, chunkText)
	reply, err := c.chat(ctx, []sdk.ChatCompletionMessage{
		{Role: sdk.ChatMessageRoleUser, Content: prompt},
	}, 256)
	if err != nil {
		return nil, err
	}
	return splitKeywords(reply), nil
}

func (c *Client) chat(ctx context.Context, messages []sdk.ChatCompletionMessage, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, sdk.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != http.StatusTooManyRequests && apiErr.HTTPStatusCode < 500 {
			return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("openai: chat: %w", err))
		}
		return "", domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("openai: chat: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewTaxonomyError(domain.KindExtraction, fmt.Errorf("openai: no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
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

// Close releases resources; the SDK client needs none explicitly.
func (c *Client) Close() error { return nil }
