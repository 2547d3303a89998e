// SPDX-License-Identifier: AGPL-3.0-only
package agent

import (
	"fmt"
	"strings"

	"github.com/acupofespresso/mcp-client/internal/config"
)

// NewChatProvider builds the appropriate ChatProvider based on cfg.AI.Provider.
func NewChatProvider(cfg *config.Config) (ChatProvider, error) {
	provider := strings.ToLower(cfg.AI.Provider)
	switch provider {
	case "anthropic":
		apiKey := cfg.AI.AnthropicAPIKey
		if apiKey == "" {
			apiKey = cfg.AI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key is not set in configuration")
		}
		return NewAnthropicProvider(apiKey, cfg.AI.MaxTokens), nil
	default: // "openai" or empty
		apiKey := cfg.AI.OpenAIAPIKey
		if apiKey == "" {
			apiKey = cfg.AI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is not set in configuration")
		}
		return NewOpenAIProvider(apiKey, cfg.AI.BaseURL, cfg.AI.MaxTokens), nil
	}
}
