package driven

import "context"

// Vectorizer embeds text into fixed-width vectors for the Vector
// Adapter. Dimensions() must match the VectorAdapter it feeds; the
// Index Manager checks every returned vector's length against it on
// each embed call, before any write.
type Vectorizer interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}
