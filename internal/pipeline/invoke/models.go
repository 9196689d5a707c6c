// internal/pipeline/invoke/models.go
package invoke

import (
	"context"

	"bedrock-router/internal/pipeline/route"
)

// ChunkStream delivers a backend response as an ordered sequence of byte
// chunks. Next returns io.EOF after the final chunk. Chunk boundaries carry
// no meaning; a multi-byte character may span two chunks.
type ChunkStream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// AgentAPI starts a streaming inference call against a resolved backend
// resource. Implementations translate transport failures into the error
// taxonomy before returning them.
type AgentAPI interface {
	InvokeAgent(ctx context.Context, ref route.ResourceRef, sessionID, inputText string) (ChunkStream, error)
}
