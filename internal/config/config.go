package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported classification providers
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr string

	// Classifier Configuration
	Provider        string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureModel      string
	AzureAPIVersion string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	MaxTokens       int
	Temperature     float64

	// Artifact Storage Configuration
	StorageConnectionString string
	ArtifactContainer       string
	ArtifactPrefix          string

	// Database Configuration
	DBPath string

	// NATS Configuration (optional transport)
	NatsURL               string
	Stream                string
	Subject               string
	Durable               string
	MaxMsgs               int
	MaxAge                time.Duration
	MaxDeliver            int
	Concurrency           int
	MonitoringTopic       string
	BackpressureThreshold int
	HealthTopic           string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	return &Config{
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		Provider:                strings.ToLower(getEnv("CLASSIFIER_PROVIDER", ProviderAzure)),
		AzureEndpoint:           getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIKey:             getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureModel:              getEnv("AZURE_OPENAI_MODEL", ""),
		AzureAPIVersion:         getEnv("AZURE_OPENAI_API_VERSION", "2025-01-01-preview"),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:           getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:         getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:          getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		MaxTokens:               getEnvInt("CLASSIFIER_MAX_TOKENS", 20),
		Temperature:             getEnvFloat("CLASSIFIER_TEMPERATURE", 0.2),
		StorageConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
		ArtifactContainer:       getEnv("ARTIFACT_CONTAINER", "cr001"),
		ArtifactPrefix:          getEnv("ARTIFACT_PREFIX", "LogsAzFnOpenAI"),
		DBPath:                  getEnv("DB_PATH", "data/classifier.sqlite"),
		NatsURL:                 getEnv("NATS_URL", ""),
		Stream:                  getEnv("STREAM_NAME", "COMPLAINTS"),
		Subject:                 getEnv("SUBJECT", "complaints.classify"),
		Durable:                 getEnv("QUEUE_DURABLE", "classify-wq"),
		MaxMsgs:                 getEnvInt("QUEUE_MAX_MSGS", 2000),
		MaxAge:                  getEnvDuration("QUEUE_MAX_AGE", "30s"),
		MaxDeliver:              getEnvInt("MAX_DELIVER", 5),
		Concurrency:             getEnvInt("WORKER_CONCURRENCY", 2),
		MonitoringTopic:         getEnv("MONITORING_TOPIC", "complaints.monitoring"),
		BackpressureThreshold:   getEnvInt("BACKPRESSURE_THRESHOLD", 10),
		HealthTopic:             getEnv("HEALTH_TOPIC", "complaints.health"),
	}, nil
}

// ClassifierModel returns the model or deployment name used by the selected provider.
func (c *Config) ClassifierModel() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAIModel
	case ProviderAnthropic:
		return c.AnthropicModel
	default:
		return c.AzureModel
	}
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
