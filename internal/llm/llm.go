package llm

import (
	"context"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// ProviderKind tags which backend a credential belongs to.
type ProviderKind string

const (
	ProviderGemini ProviderKind = "gemini"
	ProviderOpenAI ProviderKind = "openai"
)

// AnalyzeRequest carries one frame plus the goal and continuity context.
type AnalyzeRequest struct {
	Image    []byte
	Goal     string
	Context  *types.AnalysisContext
	Insights []types.Insight
}

// ChatRequest is a single user-initiated chat call.
type ChatRequest struct {
	Message    string
	History    []types.ChatTurn
	Screenshot []byte
	Goal       string
	File       *types.Attachment
}

// Provider is one vision-chat backend bound to a single credential.
type Provider interface {
	Name() string
	Close() error
	// AnalyzeFrame returns an outcome without timestamp, screenshot or goal.
	AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error)
	SendChat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder is implemented by providers that can vectorize text for the
// similarity memory.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
