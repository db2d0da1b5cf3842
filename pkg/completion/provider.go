package completion

import (
	"context"
	"fmt"
	"strings"
)

// Message roles understood by every provider
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider is an interface for chat completion APIs
type Provider interface {
	// Call submits the conversation and returns the model reply
	Call(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// Message is one entry of the submitted conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains the request parameters for a completion call
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response contains the reply from the provider
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Settings selects and authenticates a provider
type Settings struct {
	Provider string `json:"provider"` // "openai", "anthropic", "gemini"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// ProviderFactory creates completion providers
type ProviderFactory struct{}

// NewProvider creates a provider from settings
func (f *ProviderFactory) NewProvider(ctx context.Context, settings Settings) (Provider, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %q", settings.Provider)
	}

	switch strings.ToLower(settings.Provider) {
	case "", "openai":
		return NewOpenAIProvider(settings.APIKey, settings.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(settings.APIKey, settings.BaseURL), nil
	case "gemini":
		return NewGeminiProvider(ctx, settings.APIKey, settings.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", settings.Provider)
	}
}

// splitSystem separates system messages from the conversation turns.
// Multiple system messages are joined with a blank line.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		}
		turns = append(turns, msg)
	}
	return strings.Join(system, "\n\n"), turns
}
