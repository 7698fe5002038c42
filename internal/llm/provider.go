package llm

import (
	"context"
	"errors"

	"github.com/ppiankov/ipdd/internal/model"
)

// ErrNoProvider is returned when no generator is configured
var ErrNoProvider = errors.New("no LLM provider configured")

// Generator produces the raw report text from a system and user prompt
type Generator interface {
	// Name returns the provider name
	Name() string

	// Generate runs one completion. The response text is untrusted and may
	// contain anything; callers parse it with ParseDocument.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest contains the input for one generation
type GenerateRequest struct {
	// System is the instruction block sent with the system role
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured sampling temperature when > 0
	Temperature float64

	// JSONMode asks the provider to constrain output to a JSON object
	JSONMode bool
}

// GenerateResponse contains the raw generator output
type GenerateResponse struct {
	// Text is the concatenated response text
	Text string

	// Model is the model that generated the response
	Model string

	// Usage tracks token consumption
	Usage model.TokenUsage

	// URLCitations are the URLs found in the response text
	URLCitations []string
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float64

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Model:       "",
		Timeout:     600,
		MaxTokens:   25000,
		Temperature: 0.2,
	}
}

func (c Config) model(override string) string {
	if override != "" {
		return override
	}
	return c.Model
}

func (c Config) maxTokens(override int) int {
	if override > 0 {
		return override
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 4000
}

func (c Config) temperature(override float64) float64 {
	if override > 0 {
		return override
	}
	return c.Temperature
}
