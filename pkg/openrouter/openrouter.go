package openrouter

import (
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/calderonlabs/tienda-backend/pkg/config"
)

// NewClient creates an OpenAI SDK client pointed at OpenRouter. Returns nil
// when no API key is configured, which disables the agent.
func NewClient(cfg config.OpenRouterConfig) *openai.Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}

	client := openai.NewClient(opts...)
	return &client
}
