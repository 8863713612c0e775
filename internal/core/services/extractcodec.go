package services

import (
	"encoding/json"

	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

// cachedExtractResult mirrors driven.ExtractResult for JSON round-
// tripping through the Artifact Cache, which stores opaque []byte
// values keyed by content+options identity.
type cachedExtractResult struct {
	Text        string                 `json:"text"`
	Pairs       []driven.ExtractedPair `json:"pairs"`
	ParseMethod string                 `json:"parse_method"`
	PageCount   int                    `json:"page_count"`
}

func encodeExtractResult(r driven.ExtractResult) ([]byte, error) {
	return json.Marshal(cachedExtractResult{
		Text:        r.Text,
		Pairs:       r.Pairs,
		ParseMethod: r.ParseMethod,
		PageCount:   r.PageCount,
	})
}

func decodeExtractResult(data []byte) (driven.ExtractResult, error) {
	var c cachedExtractResult
	if err := json.Unmarshal(data, &c); err != nil {
		return driven.ExtractResult{}, err
	}
	return driven.ExtractResult{
		Text:        c.Text,
		Pairs:       c.Pairs,
		ParseMethod: c.ParseMethod,
		PageCount:   c.PageCount,
	}, nil
}
