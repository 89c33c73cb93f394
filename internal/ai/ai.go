package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient issues one chat-completion request and returns the model's text.
type ChatClient interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// Embedder maps text to fixed-dimension vectors. Implementations must return
// vectors of the dimension the vector index was configured with.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
