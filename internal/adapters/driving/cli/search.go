package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/services"
)

var (
	searchTopK   int
	searchType   string
	searchMethod string
	searchFilter []string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Searches the vector index, the keyword index, or both. Hybrid search
(the default) runs both concurrently and fuses the result sets.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "hybrid", "search type: vector, keyword, or hybrid")
	searchCmd.Flags().StringVarP(&searchMethod, "method", "m", "", "hybrid fusion method: rrf, weighted, or adaptive (default from config)")
	searchCmd.Flags().StringSliceVar(&searchFilter, "doc", nil, "restrict results to these document ids (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	query := args[0]
	ctx := context.Background()

	filter := make([]domain.DocumentID, 0, len(searchFilter))
	for _, id := range searchFilter {
		filter = append(filter, domain.DocumentID(id))
	}

	var hits []domain.Hit
	var err error
	switch strings.ToLower(searchType) {
	case "vector":
		hits, err = searchService.VectorOnly(ctx, query, searchTopK, filter)
	case "keyword":
		hits, err = searchService.KeywordOnly(ctx, query, searchTopK, filter)
	case "hybrid":
		opts := services.QueryOptions{Filter: filter}
		if searchMethod != "" {
			m := domain.ParseFusionMethod(strings.ToLower(searchMethod))
			opts.Method = &m
		}
		hits, err = searchService.Query(ctx, query, searchTopK, opts)
	default:
		return usageErrorf("unknown search type %q (valid: vector, keyword, hybrid)", searchType)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputHitsJSON(cmd, hits)
	}
	return outputHitsTable(cmd, hits)
}

func outputHitsJSON(cmd *cobra.Command, hits []domain.Hit) error {
	type jsonHit struct {
		ChunkID string            `json:"chunk_id"`
		Score   float64           `json:"score"`
		Payload map[string]string `json:"payload,omitempty"`
	}
	out := make([]jsonHit, len(hits))
	for i, h := range hits {
		out[i] = jsonHit{ChunkID: string(h.ChunkID), Score: h.Score, Payload: h.Payload}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputHitsTable(cmd *cobra.Command, hits []domain.Hit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, h := range hits {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, h.ChunkID, h.Score)
		if text := h.Payload["text"]; text != "" {
			cmd.Printf("      %s\n", snippet(text, 120))
		}
		cmd.Println()
	}
	return nil
}

func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
