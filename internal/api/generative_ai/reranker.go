package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

const defaultRerankModel = "gemini-2.0-flash"

// Reranker asks Gemini to order a candidate POI list by relevance to the
// query. The search pipeline treats it as best-effort: any failure here
// falls back to the store's natural ordering.
type Reranker struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewReranker(ctx context.Context, logger *slog.Logger) (*Reranker, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Reranker{client: client, model: defaultRerankModel, logger: logger}, nil
}

// Rank returns the candidate ids ordered by relevance to the query. Ids the
// model omits or mangles are simply absent from the result; the pipeline
// appends them at a fixed low score.
func (r *Reranker) Rank(ctx context.Context, candidates []types.POIDetailedInfo, query string) ([]uuid.UUID, error) {
	var b strings.Builder
	b.WriteString("Order these places from most to least relevant for the query.\n")
	b.WriteString("Reply with one id per line, nothing else.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\nPlaces:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&b, "%s | %s | %s | rating %.1f (%d reviews)\n",
			c.ID, c.Name, c.Category, c.Rating, c.ReviewCount)
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(b.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("rerank call failed: %w", err)
	}

	var ordered []uuid.UUID
	for _, line := range strings.Split(result.Text(), "\n") {
		id, err := uuid.Parse(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		ordered = append(ordered, id)
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("rerank response contained no usable ids")
	}
	r.logger.DebugContext(ctx, "reranked candidates",
		slog.Int("candidates", len(candidates)), slog.Int("ordered", len(ordered)))
	return ordered, nil
}
