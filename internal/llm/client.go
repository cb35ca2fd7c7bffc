// Package llm wraps the hosted generation and embedding provider. The
// provider is a black box: text in, SQL text or vector out. Everything it
// produces is treated as untrusted until it clears the safety validator.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/msdcl/nlq-backend/internal/config"
	"github.com/msdcl/nlq-backend/internal/schema"
)

// Generated is the provider's answer for one question.
type Generated struct {
	SQL         string
	Explanation string
}

// Client talks to Gemini for both embeddings and SQL generation.
type Client struct {
	client     *genai.Client
	generative *genai.GenerativeModel
	embedding  *genai.EmbeddingModel
}

// NewClient initializes the Gemini client and binds the configured models.
func NewClient(ctx context.Context, apiKey string, cfg config.LLMConfig) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("initializing gemini client: %w", err)
	}

	return &Client{
		client:     client,
		generative: client.GenerativeModel(cfg.Model),
		embedding:  client.EmbeddingModel(cfg.EmbeddingModel),
	}, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.embedding.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if res == nil || res.Embedding == nil {
		return nil, fmt.Errorf("provider returned no embedding")
	}
	return res.Embedding.Values, nil
}

// GenerateSQL asks the model for a single SELECT answering the question,
// given the ranked schema context and relationship hints.
func (c *Client) GenerateSQL(ctx context.Context, question, language string, items []schema.ContextItem, rels []schema.Relationship) (Generated, error) {
	prompt := BuildPrompt(question, language, items, rels)

	start := time.Now()
	resp, err := c.generative.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return Generated{}, fmt.Errorf("generating SQL: %w", err)
	}
	log.Debug().Dur("llm_latency", time.Since(start)).Msg("generation completed")

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Generated{}, fmt.Errorf("provider returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	sql, explanation := SplitResponse(text.String())
	if sql == "" {
		return Generated{}, fmt.Errorf("provider response contained no SQL")
	}

	return Generated{SQL: sql, Explanation: explanation}, nil
}

// Healthy probes the provider with a tiny embedding request.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.Embed(ctx, "ping")
	return err == nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}
