package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig holds the Anthropic Messages API settings.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicClassifier classifies complaints through the Anthropic Messages API.
type AnthropicClassifier struct {
	client   anthropic.Client
	model    string
	settings Settings
}

func NewAnthropic(cfg AnthropicConfig, settings Settings, opts ...option.RequestOption) (*AnthropicClassifier, error) {
	if err := requireSettings("anthropic", map[string]string{
		"ANTHROPIC_API_KEY": cfg.APIKey,
		"ANTHROPIC_MODEL":   cfg.Model,
	}); err != nil {
		return nil, err
	}

	base := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	return &AnthropicClassifier{
		client:   anthropic.NewClient(append(base, opts...)...),
		model:    strings.TrimSpace(cfg.Model),
		settings: settings.withDefaults(),
	}, nil
}

func (c *AnthropicClassifier) Model() string {
	return c.model
}

func (c *AnthropicClassifier) Classify(ctx context.Context, complaint string) (Classification, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.settings.MaxTokens,
		Temperature: anthropic.Float(c.settings.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(complaint)),
		},
	})
	if err != nil {
		return Classification{}, fmt.Errorf("anthropic messages: %w", err)
	}

	// Anthropic does not report a total.
	result := Classification{
		PromptTokens:     message.Usage.InputTokens,
		CompletionTokens: message.Usage.OutputTokens,
		TotalTokens:      message.Usage.InputTokens + message.Usage.OutputTokens,
	}
	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		category, err := cleanCategory(block.Text)
		if err != nil {
			return Classification{}, fmt.Errorf("anthropic messages: %w", err)
		}
		result.Category = category
		return result, nil
	}
	return Classification{}, fmt.Errorf("anthropic messages: %w: no text content", ErrEmptyResponse)
}
