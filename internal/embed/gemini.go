package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModel embeds text through the Gemini API. The API key is read from
// the GEMINI_API_KEY environment variable by the client.
type GeminiModel struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGeminiModel creates a Gemini-backed Model with a fixed output
// dimension. Construction fails if no credentials are available.
func NewGeminiModel(ctx context.Context, model string, dimension int) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed returns the vector for a single text.
func (g *GeminiModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in a single API call.
func (g *GeminiModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(g.dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts",
			len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini returned empty embedding for text %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Dimension returns the configured output vector length.
func (g *GeminiModel) Dimension() int { return g.dimension }

// Name returns the model identifier used for cache keying.
func (g *GeminiModel) Name() string { return g.model }
