// Package pairparse extracts the structured label/value pairs a
// Datasheet-mode extraction prompt asks a vision-capable model to
// return alongside its free text. Models are unreliable at producing
// strict JSON, so this is a tolerant grammar, not a strict decoder: it
// accepts a JSON array inside a ```json or bare ``` fence, single or
// double quoted strings, and trailing commas, and it never fails the
// whole extraction — a reply with no parseable pairs just yields none.
// An array that is not inside a fence is not recognised.
package pairparse

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*?\\])\\s*```")
	trailingComma = regexp.MustCompile(`,(\s*[\]}])`)
	singleQuoted  = regexp.MustCompile(`'([^'\\]*)'`)
)

type rawPair struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Parse splits a model reply into its prose text and any structured
// pairs embedded in the first fenced JSON array. text is the reply
// with the fenced block (if any) removed, so it can be used directly as
// chunk source text without the payload polluting BM25/embedding input.
func Parse(reply string) (text string, pairs []driven.ExtractedPair) {
	loc := fencedBlock.FindStringSubmatchIndex(reply)
	if loc == nil {
		return strings.TrimSpace(reply), nil
	}

	candidate := reply[loc[2]:loc[3]]
	remainder := reply[:loc[0]] + reply[loc[1]:]

	return strings.TrimSpace(remainder), decode(candidate)
}

func decode(candidate string) []driven.ExtractedPair {
	var raws []rawPair
	if tryDecode(candidate, &raws) {
		return toPairs(raws)
	}

	cleaned := trailingComma.ReplaceAllString(candidate, "$1")
	if tryDecode(cleaned, &raws) {
		return toPairs(raws)
	}

	cleaned = singleQuoted.ReplaceAllString(cleaned, `"$1"`)
	if tryDecode(cleaned, &raws) {
		return toPairs(raws)
	}

	return nil
}

func tryDecode(s string, out *[]rawPair) bool {
	*out = nil
	return json.Unmarshal([]byte(s), out) == nil
}

func toPairs(raws []rawPair) []driven.ExtractedPair {
	if len(raws) == 0 {
		return nil
	}
	pairs := make([]driven.ExtractedPair, 0, len(raws))
	for _, r := range raws {
		label := strings.TrimSpace(r.Label)
		value := strings.TrimSpace(r.Value)
		if label == "" && value == "" {
			continue
		}
		pairs = append(pairs, driven.ExtractedPair{Label: label, Value: value})
	}
	return pairs
}
