// Package classifier sends complaint texts to a hosted chat-completion model
// and returns the category label it chose together with the token usage.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aigoflow/complaint-classifier/internal/config"
)

// SystemPrompt is the fixed instruction sent with every complaint.
const SystemPrompt = "You are an advanced text classification model. " +
	"Your task is to receive a complaint text in Spanish and classify it " +
	"into one of the following three categories. Return only the category " +
	"name in Spanish, nothing else.\n" +
	"Digital Platforms: Complaints related to issues with online services, " +
	"applications, or websites, such as login problems, functionality errors, " +
	"or user experience issues.\n" +
	"In-Person Office Assistance: Complaints regarding the quality of service " +
	"received at physical office locations, including long wait times, " +
	"unhelpful staff, or inadequate assistance.\n" +
	"Transactional Issues with Contributions or Withdrawals: Complaints " +
	"concerning problems with financial transactions, such as difficulties " +
	"with deposits, withdrawals, or account management.\n" +
	"Analyze the provided complaint text and return the appropriate category " +
	"based on its content."

const (
	defaultMaxTokens   = 20
	defaultTemperature = 0.2
)

var (
	// ErrNotConfigured is returned by New when the selected provider lacks credentials or an endpoint.
	ErrNotConfigured = errors.New("classifier not configured")
	// ErrEmptyResponse is returned when the model produced no usable category.
	ErrEmptyResponse = errors.New("empty classification response")
)

// Classification is the category chosen by the model plus token usage.
type Classification struct {
	Category         string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Classifier assigns a category to a complaint.
type Classifier interface {
	Classify(ctx context.Context, complaint string) (Classification, error)
	// Model returns the model or deployment name requests are sent to.
	Model() string
}

// Settings are the sampling parameters shared by every provider.
type Settings struct {
	MaxTokens   int64
	Temperature float64
}

func (s Settings) withDefaults() Settings {
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	if s.Temperature < 0 {
		s.Temperature = defaultTemperature
	}
	return s
}

// New builds the classifier selected by cfg.Provider.
func New(cfg *config.Config) (Classifier, error) {
	settings := Settings{MaxTokens: int64(cfg.MaxTokens), Temperature: cfg.Temperature}

	var (
		c   Classifier
		err error
	)
	switch cfg.Provider {
	case config.ProviderAzure, "":
		c, err = NewAzureOpenAI(AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			APIKey:     cfg.AzureAPIKey,
			APIVersion: cfg.AzureAPIVersion,
			Deployment: cfg.AzureModel,
		}, settings)
	case config.ProviderOpenAI:
		c, err = NewOpenAI(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, settings)
	case config.ProviderAnthropic:
		c, err = NewAnthropic(AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}, settings)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// requireSettings reports which of the named values are blank.
func requireSettings(provider string, values map[string]string) error {
	var missing []string
	for name, val := range values {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s requires %s", ErrNotConfigured, provider, strings.Join(missing, ", "))
}

func cleanCategory(content string) (string, error) {
	category := strings.TrimSpace(content)
	if category == "" {
		return "", ErrEmptyResponse
	}
	return category, nil
}
