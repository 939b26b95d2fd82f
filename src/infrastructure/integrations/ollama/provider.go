package ollama

import (
	"context"

	"github.com/tmc/langchaingo/textsplitter"

	"reelforge/src/log"
)

// Provider adapts the ollama client to the scene planner's LLMProvider
// interface for a fixed model
type Provider struct {
	ollamaClient *Client
	modelName    string
}

func NewProvider(ollamaClient *Client, modelName string) *Provider {
	return &Provider{
		ollamaClient: ollamaClient,
		modelName:    modelName,
	}
}

func (p *Provider) TextSplit(ctx context.Context, text string, chunkSize, chunkOverLap int) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverLap),
		textsplitter.WithLenFunc(
			func(s string) int {
				n, err := p.ollamaClient.CountTokens(ctx, p.modelName, s)
				if err != nil {
					log.Error(err, "failed to count tokens for splitting")
					return -1
				}
				return n
			},
		),
	)

	return splitter.SplitText(text)
}

func (p *Provider) Reasoning(ctx context.Context, system string, prompt string) (string, error) {
	return p.ollamaClient.Generate(ctx, p.modelName, system, prompt, map[string]interface{}{
		"temperature": 0.7,
		"top_p":       0.9,
	})
}

func (p *Provider) TokenLength(ctx context.Context, text string) (int, error) {
	return p.ollamaClient.CountTokens(ctx, p.modelName, text)
}
