package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/genai"
)

const defaultEmbeddingModel = "gemini-embedding-001"

// EmbeddingService turns query text into vectors for the search pipeline.
// The model itself is an external collaborator; this client only owns the
// call.
type EmbeddingService struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewEmbeddingService(ctx context.Context, logger *slog.Logger) (*EmbeddingService, error) {
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
	return &EmbeddingService{
		client: client,
		model:  defaultEmbeddingModel,
		logger: logger,
	}, nil
}

// GenerateEmbedding produces the embedding vector for one piece of text.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := s.client.Models.EmbedContent(ctx, s.model, contents, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to generate embedding", slog.Any("error", err))
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embedding response contained no values")
	}
	return resp.Embeddings[0].Values, nil
}
