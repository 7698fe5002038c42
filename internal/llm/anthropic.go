package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/util"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicMessager is the part of the Anthropic SDK client the provider uses
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClientCreator builds a messages client from a provider config
type AnthropicClientCreator func(config Config) AnthropicMessager

func defaultAnthropicCreator(config Config) AnthropicMessager {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPProxy != "" || config.HTTPSProxy != "" {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		}))
	}
	c := anthropic.NewClient(opts...)
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicProvider implements Generator for Claude models
type AnthropicProvider struct {
	messages AnthropicMessager
	config   Config
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	return &AnthropicProvider{
		messages: newAnthropicClient(config),
		config:   config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured. The messages API
// has no free ping, so only the key is checked.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.config.APIKey != ""
}

// Generate runs one message completion
func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	modelName := p.config.model(req.Model)
	if modelName == "" {
		modelName = defaultAnthropicModel
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := req.Prompt
	if req.JSONMode {
		prompt += "\n\nRespond with only valid JSON matching the schema."
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   int64(p.config.maxTokens(req.MaxTokens)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(p.config.temperature(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.messages.New(ctxWithTimeout, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("no response from Anthropic")
	}

	prompted := int(resp.Usage.InputTokens)
	completed := int(resp.Usage.OutputTokens)
	responseModel := string(resp.Model)
	if responseModel == "" {
		responseModel = modelName
	}

	return &GenerateResponse{
		Text:  text,
		Model: responseModel,
		Usage: model.TokenUsage{
			PromptTokens:     prompted,
			CompletionTokens: completed,
			TotalTokens:      prompted + completed,
		},
		URLCitations: extractURLs(text),
	}, nil
}
