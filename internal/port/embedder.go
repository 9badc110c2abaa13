package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates one unit-norm vector per input text, in input order.
	// It must be safe to call with an empty slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
