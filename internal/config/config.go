// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default values for the client configuration.
const (
	DefaultModel             = "gpt-4o"
	DefaultMaxTokens         = 1000
	DefaultMaxToolIterations = 20
	DefaultTypewriterDelay   = 10 * time.Millisecond
)

// Config holds all configuration for the chat client.
type Config struct {
	Client  ClientConfig
	AI      AIConfig
	MCP     MCPConfig
	Chat    ChatConfig
	Logging LoggingConfig
	Store   StoreConfig
}

// ClientConfig identifies this client to MCP servers.
type ClientConfig struct {
	Name    string
	Version string
}

// AIConfig configures the LLM provider.
type AIConfig struct {
	// Provider selects the chat backend: "openai" or "anthropic".
	Provider string
	// APIKey is a provider-independent fallback key.
	APIKey string
	// OpenAIAPIKey overrides APIKey for the OpenAI provider.
	OpenAIAPIKey string
	// AnthropicAPIKey overrides APIKey for the Anthropic provider.
	AnthropicAPIKey string
	// BaseURL points the OpenAI provider at any OpenAI-compatible endpoint.
	BaseURL string
	// Model is the model identifier sent with every completion.
	Model string
	// MaxTokens caps the tokens generated per completion.
	MaxTokens int
	// MaxToolIterations bounds the tool-call loop for a single query.
	MaxToolIterations int
}

// MCPConfig locates the MCP server definitions.
type MCPConfig struct {
	// ConfigFilePath is a cursor-style mcp.json listing tool-provider servers.
	ConfigFilePath string
}

// ChatConfig controls terminal behavior.
type ChatConfig struct {
	// Stream enables streaming completions with typewriter output.
	Stream bool
	// TypewriterDelay is the pause between printed runes (0 disables).
	TypewriterDelay time.Duration
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level    string
	FilePath string
}

// StoreConfig configures the transcript store.
type StoreConfig struct {
	// DBPath is the SQLite database for the exchange transcript.
	DBPath string
	// Disabled turns transcript persistence off entirely.
	Disabled bool
}

// DefaultConfig returns a configuration with sane defaults.
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		Client: ClientConfig{
			Name:    "mcp-client",
			Version: "0.3.0",
		},
		AI: AIConfig{
			Provider:          "openai",
			Model:             DefaultModel,
			MaxTokens:         DefaultMaxTokens,
			MaxToolIterations: DefaultMaxToolIterations,
		},
		MCP: MCPConfig{
			ConfigFilePath: filepath.Join(homeDir, ".cursor", "mcp.json"),
		},
		Chat: ChatConfig{
			Stream:          true,
			TypewriterDelay: DefaultTypewriterDelay,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			DBPath: filepath.Join(homeDir, ".mcp-client", "transcript.db"),
		},
	}
}

// FromEnv overrides cfg fields from environment variables.
func FromEnv(cfg *Config) {
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AI.AnthropicAPIKey = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	// ANTHROPIC_MODEL is honored for parity with other Anthropic tooling.
	if v := os.Getenv("ANTHROPIC_MODEL"); v != "" && strings.EqualFold(cfg.AI.Provider, "anthropic") {
		cfg.AI.Model = v
	}
	if v := os.Getenv("AI_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AI.MaxTokens = n
		}
	}
	if v := os.Getenv("AI_MAX_TOOL_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AI.MaxToolIterations = n
		}
	}
	if v := os.Getenv("MCP_CONFIG_PATH"); v != "" {
		cfg.MCP.ConfigFilePath = v
	}
	if v := os.Getenv("TYPEWRITER_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Chat.TypewriterDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.FilePath = v
	}
	if v := os.Getenv("MCP_CLIENT_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AI.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("AI model must not be empty")
	}
	if c.AI.MaxTokens < 1 {
		return fmt.Errorf("AI max tokens must be positive, got %d", c.AI.MaxTokens)
	}
	if c.AI.MaxToolIterations < 1 {
		return fmt.Errorf("AI max tool iterations must be positive, got %d", c.AI.MaxToolIterations)
	}
	if c.Chat.TypewriterDelay < 0 {
		return fmt.Errorf("typewriter delay must not be negative")
	}
	if c.MCP.ConfigFilePath == "" {
		return fmt.Errorf("MCP config file path must not be empty")
	}
	if !c.Store.Disabled && c.Store.DBPath == "" {
		return fmt.Errorf("store DB path must not be empty when the store is enabled")
	}
	return nil
}
