// Package ratelimit wraps the upstream-call ports (ContentExtractor,
// Vectorizer, KeywordGenerator) with a shared token-bucket limiter so a
// large ingest batch doesn't hammer a hosted API into 429s. Each
// wrapper blocks in Wait until the limiter admits the call or the
// context is cancelled, which the Worker Pool sees as an ordinary
// retryable error.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var (
	_ driven.ContentExtractor = (*Extractor)(nil)
	_ driven.Vectorizer       = (*Vectorizer)(nil)
	_ driven.KeywordGenerator = (*KeywordGenerator)(nil)
)

// NewLimiter builds a token-bucket limiter admitting callsPerSecond
// sustained calls with a burst of burst. Non-positive values fall back
// to 5/s with a burst of 10, a rate hosted embedding and chat APIs
// tolerate comfortably.
func NewLimiter(callsPerSecond float64, burst int) *rate.Limiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return rate.NewLimiter(rate.Limit(callsPerSecond), burst)
}

// Extractor rate-limits a driven.ContentExtractor.
type Extractor struct {
	inner   driven.ContentExtractor
	limiter *rate.Limiter
}

// NewExtractor wraps inner with limiter.
func NewExtractor(inner driven.ContentExtractor, limiter *rate.Limiter) *Extractor {
	return &Extractor{inner: inner, limiter: limiter}
}

// Extract waits for a limiter token, then delegates.
func (e *Extractor) Extract(ctx context.Context, content []byte, mimeHint string, mode driven.ExtractMode, prompt string) (driven.ExtractResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return driven.ExtractResult{}, domain.NewTaxonomyError(domain.KindTransient, err)
	}
	return e.inner.Extract(ctx, content, mimeHint, mode, prompt)
}

// Vectorizer rate-limits a driven.Vectorizer.
type Vectorizer struct {
	inner   driven.Vectorizer
	limiter *rate.Limiter
}

// NewVectorizer wraps inner with limiter.
func NewVectorizer(inner driven.Vectorizer, limiter *rate.Limiter) *Vectorizer {
	return &Vectorizer{inner: inner, limiter: limiter}
}

// Embed waits for a limiter token, then delegates.
func (v *Vectorizer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, domain.NewTaxonomyError(domain.KindTransient, err)
	}
	return v.inner.Embed(ctx, texts)
}

// Dimensions delegates to the wrapped Vectorizer.
func (v *Vectorizer) Dimensions() int { return v.inner.Dimensions() }

// ModelName delegates to the wrapped Vectorizer.
func (v *Vectorizer) ModelName() string { return v.inner.ModelName() }

// KeywordGenerator rate-limits a driven.KeywordGenerator.
type KeywordGenerator struct {
	inner   driven.KeywordGenerator
	limiter *rate.Limiter
}

// NewKeywordGenerator wraps inner with limiter.
func NewKeywordGenerator(inner driven.KeywordGenerator, limiter *rate.Limiter) *KeywordGenerator {
	return &KeywordGenerator{inner: inner, limiter: limiter}
}

// Augment waits for a limiter token, then delegates.
func (g *KeywordGenerator) Augment(ctx context.Context, chunkText, docContext string) ([]string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, domain.NewTaxonomyError(domain.KindTransient, err)
	}
	return g.inner.Augment(ctx, chunkText, docContext)
}
