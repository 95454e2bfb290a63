package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// AzureConfig holds the Azure OpenAI resource settings.
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
}

// OpenAIConfig holds settings for any OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ChatCompletionsClassifier classifies complaints through the chat completions API.
type ChatCompletionsClassifier struct {
	client   openai.Client
	model    string
	settings Settings
}

// NewAzureOpenAI targets an Azure OpenAI deployment. Extra options are applied last.
func NewAzureOpenAI(cfg AzureConfig, settings Settings, opts ...option.RequestOption) (*ChatCompletionsClassifier, error) {
	if err := requireSettings("azure", map[string]string{
		"AZURE_OPENAI_ENDPOINT":    cfg.Endpoint,
		"AZURE_OPENAI_API_KEY":     cfg.APIKey,
		"AZURE_OPENAI_MODEL":       cfg.Deployment,
		"AZURE_OPENAI_API_VERSION": cfg.APIVersion,
	}); err != nil {
		return nil, err
	}

	base := []option.RequestOption{
		azure.WithEndpoint(strings.TrimSpace(cfg.Endpoint), cfg.APIVersion),
		azure.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	return &ChatCompletionsClassifier{
		client:   openai.NewClient(append(base, opts...)...),
		model:    strings.TrimSpace(cfg.Deployment),
		settings: settings.withDefaults(),
	}, nil
}

// NewOpenAI targets the OpenAI API, or a compatible server when BaseURL is set.
func NewOpenAI(cfg OpenAIConfig, settings Settings, opts ...option.RequestOption) (*ChatCompletionsClassifier, error) {
	if err := requireSettings("openai", map[string]string{
		"OPENAI_API_KEY": cfg.APIKey,
		"OPENAI_MODEL":   cfg.Model,
	}); err != nil {
		return nil, err
	}

	base := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if url := strings.TrimSpace(cfg.BaseURL); url != "" {
		base = append(base, option.WithBaseURL(url))
	}
	return &ChatCompletionsClassifier{
		client:   openai.NewClient(append(base, opts...)...),
		model:    strings.TrimSpace(cfg.Model),
		settings: settings.withDefaults(),
	}, nil
}

func (c *ChatCompletionsClassifier) Model() string {
	return c.model
}

func (c *ChatCompletionsClassifier) Classify(ctx context.Context, complaint string) (Classification, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(complaint),
		},
		MaxTokens:   openai.Int(c.settings.MaxTokens),
		Temperature: openai.Float(c.settings.Temperature),
	})
	if err != nil {
		return Classification{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("chat completion: %w: no choices", ErrEmptyResponse)
	}

	category, err := cleanCategory(resp.Choices[0].Message.Content)
	if err != nil {
		return Classification{}, fmt.Errorf("chat completion: %w", err)
	}

	return Classification{
		Category:         category,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
