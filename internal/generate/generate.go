// ABOUTME: Generation collaborator contract: prompt in, fragment stream out.

package generate

import "context"

// Chunk is one element of a generation stream. The stream is zero or more
// text fragments followed by exactly one terminal chunk with Done set (or an
// error chunk, which also terminates the stream).
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Generator produces an incremental text stream for a prompt. Implementations
// close the returned channel after the terminal chunk.
type Generator interface {
	Generate(ctx context.Context, prompt string) (<-chan Chunk, error)
}
