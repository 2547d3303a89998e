// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/acupofespresso/mcp-client/internal/agent"
	"github.com/acupofespresso/mcp-client/internal/chat"
	"github.com/acupofespresso/mcp-client/internal/config"
	"github.com/acupofespresso/mcp-client/internal/logging"
	"github.com/acupofespresso/mcp-client/internal/model"
	"github.com/acupofespresso/mcp-client/internal/repl"
	"github.com/acupofespresso/mcp-client/internal/singleton"
	"github.com/acupofespresso/mcp-client/internal/store"
	"github.com/acupofespresso/mcp-client/internal/tools"
)

var (
	aiProvider      = flag.String("ai-provider", "", "AI provider: openai or anthropic (default: openai)")
	aiBaseURL       = flag.String("ai-base-url", "", "Custom base URL for OpenAI-compatible endpoints (e.g. Ollama, vLLM, Groq, LiteLLM)")
	aiModel         = flag.String("ai-model", "", "AI model to use for chat (default: gpt-4o)")
	aiMaxIterations = flag.Int("ai-max-iterations", 0, "Maximum tool-call iterations per query (default: 20)")
	mcpConfigPath   = flag.String("mcp-config-path", "", "Path to MCP configuration file (default: ~/.cursor/mcp.json)")
	dbPath          = flag.String("db-path", "", "Path to SQLite database for the exchange transcript (default: ~/.mcp-client/transcript.db)")
	noStore         = flag.Bool("no-store", false, "Disable transcript persistence")
	noStream        = flag.Bool("no-stream", false, "Disable streaming; print each answer once it is complete")
	typewriterDelay = flag.Int("typewriter-delay", -1, "Delay between printed characters in milliseconds, 0 disables (default: 10)")
	logLevel        = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile         = flag.String("log-file", "", "Log file path (default: stderr)")
	version         = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg := loadConfig()

	// Show version and exit if requested
	if *version {
		log.Printf("%s version %s", cfg.Client.Name, cfg.Client.Version)
		os.Exit(0)
	}

	// Create a context that will be cancelled on interrupt signal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the application
	app, err := createApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Run the interactive loop in the background so signals stay responsive
	done := make(chan error, 1)
	go func() {
		done <- app.loop.Run(ctx)
	}()

	// Wait for the loop to finish or for a termination signal
	waitForShutdown(cancel, app, done)
}

// loadConfig loads configuration from .env, environment and command line flags
func loadConfig() *config.Config {
	// Pick up a local .env file when present; a missing file is fine
	_ = godotenv.Load()

	// Start with defaults
	cfg := config.DefaultConfig()

	// Override with environment variables
	config.FromEnv(cfg)

	// Override with command-line flags
	applyCommandLineFlagsToConfig(cfg)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// applyCommandLineFlagsToConfig applies command line flags to the configuration
func applyCommandLineFlagsToConfig(cfg *config.Config) {
	if *aiProvider != "" {
		cfg.AI.Provider = *aiProvider
	}
	if *aiBaseURL != "" {
		cfg.AI.BaseURL = *aiBaseURL
	}
	if *aiModel != "" {
		cfg.AI.Model = *aiModel
	}
	if *aiMaxIterations > 0 {
		cfg.AI.MaxToolIterations = *aiMaxIterations
	}
	if *mcpConfigPath != "" {
		cfg.MCP.ConfigFilePath = *mcpConfigPath
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}
	if *noStore {
		cfg.Store.Disabled = true
	}
	if *noStream {
		cfg.Chat.Stream = false
	}
	if *typewriterDelay >= 0 {
		cfg.Chat.TypewriterDelay = time.Duration(*typewriterDelay) * time.Millisecond
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
}

// Application represents the running application
type Application struct {
	lock     *singleton.Lock
	store    model.TranscriptStore
	registry *tools.Registry
	session  *chat.Session
	loop     *repl.Loop
	logger   *logging.Logger
}

// createApp wires the application: logger, singleton lock, transcript store,
// tool registry, chat provider, session and the interactive loop.
func createApp(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefaultLogger(logger)

	app := &Application{logger: logger}

	// Only one instance may write the transcript database; secondary
	// instances run with persistence off.
	if !cfg.Store.Disabled {
		lock, primary, err := singleton.TryAcquire(cfg.Store.DBPath)
		if err != nil {
			return nil, err
		}
		if !primary {
			logger.Warnf("Another instance holds the transcript lock; persistence disabled for this run")
			cfg.Store.Disabled = true
		} else {
			app.lock = lock
		}
	}

	if !cfg.Store.Disabled {
		transcripts, err := store.NewSQLiteStore(cfg.Store.DBPath)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("create transcript store: %w", err)
		}
		app.store = transcripts
	}

	// Connect to the configured MCP servers and discover their tools
	registry, err := tools.Connect(ctx, cfg, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.registry = registry

	provider, err := agent.NewChatProvider(cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	tw := repl.NewTypewriter(os.Stdout, cfg.Chat.TypewriterDelay)
	app.session = chat.NewSession(chat.Options{
		Provider: provider,
		Tools:    registry,
		Config:   cfg,
		Store:    app.store,
		Logger:   logger,
		OnDelta:  func(delta string) { tw.Print(delta) },
		Notify: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stdout, "\n"+format+"\n", args...)
		},
	})

	app.loop = repl.New(repl.Options{
		In:         os.Stdin,
		Out:        os.Stdout,
		Session:    app.session,
		ToolNames:  registry.Names(),
		Streaming:  cfg.Chat.Stream,
		Typewriter: tw,
		Logger:     logger,
	})

	logger.Infof("Session %s started with %d tools", app.session.ID(), len(registry.Names()))
	return app, nil
}

// newLogger builds the logger from the logging configuration
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.FilePath != "" {
		return logging.FileLogger(cfg.Logging.FilePath, level)
	}
	return logging.New(logging.Options{Level: level}), nil
}

// close releases everything the application holds, in reverse wiring order
func (a *Application) close() {
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.logger.Errorf("Error closing tool registry: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Errorf("Error closing transcript store: %v", err)
		}
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			a.logger.Errorf("Error releasing transcript lock: %v", err)
		}
	}
}

// waitForShutdown waits for loop exit or termination signals, then cleans up
func waitForShutdown(cancel context.CancelFunc, app *Application, done chan error) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalCh:
		app.logger.Infof("Received termination signal, shutting down...")
	case err := <-done:
		if err != nil && err != context.Canceled {
			app.logger.Errorf("Interactive loop exited: %v", err)
		}
	}

	// Cancel the context to stop any in-flight query
	cancel()

	// Clean up with a timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		app.close()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		app.logger.Infof("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		app.logger.Warnf("Shutdown timed out")
	}
}
