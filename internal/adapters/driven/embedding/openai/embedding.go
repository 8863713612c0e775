// Package openai provides a driven.Vectorizer backed by the OpenAI
// embeddings API via the sashabaranov/go-openai SDK.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// Ensure Vectorizer implements the interface.
var _ driven.Vectorizer = (*Vectorizer)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = sdk.SmallEmbedding3
	DefaultTimeout = 60 * time.Second
)

// modelDimensions maps the known embedding models to their native
// vector width, used when Config.Dimensions is unset.
var modelDimensions = map[sdk.EmbeddingModel]int{
	sdk.SmallEmbedding3: 1536,
	sdk.LargeEmbedding3: 3072,
	sdk.AdaEmbeddingV2:  1536,
}

// Config holds configuration for the OpenAI Vectorizer.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// Vectorizer embeds text via the OpenAI embeddings API.
type Vectorizer struct {
	client     *sdk.Client
	model      sdk.EmbeddingModel
	dimensions int
}

// New creates a new OpenAI Vectorizer.
func New(cfg Config) (*Vectorizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(DefaultModel)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	model := sdk.EmbeddingModel(cfg.Model)

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		var ok bool
		dimensions, ok = modelDimensions[model]
		if !ok {
			dimensions = 1536
		}
	}

	clientCfg := sdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Vectorizer{
		client:     sdk.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates vector embeddings for texts via one batched request.
func (v *Vectorizer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := sdk.EmbeddingRequest{
		Input: texts,
		Model: v.model,
	}
	if v.dimensions > 0 {
		req.Dimensions = v.dimensions
	}

	resp, err := v.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, domain.NewTaxonomyError(domain.KindTransient, fmt.Errorf("openai: embed: %w", err))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector width.
func (v *Vectorizer) Dimensions() int { return v.dimensions }

// ModelName returns the configured embedding model.
func (v *Vectorizer) ModelName() string { return string(v.model) }
