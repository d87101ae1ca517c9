// Package embedder provides text embedding clients used by the
// lexical/semantic index for mention resolution.
//
// Supported providers: OpenAI (text-embedding-3-small and friends) and
// EmbedEverything for local models. Wrap any client with NewBreakerClient
// to stop hammering a failing embedding backend.
package embedder

import "context"

// Client generates vector representations of text.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the number of dimensions in the embeddings.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds common embedder settings.
type Config struct {
	Model      string
	BaseURL    string
	Dimensions int
	BatchSize  int
}
