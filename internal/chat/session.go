// SPDX-License-Identifier: AGPL-3.0-only
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/acupofespresso/mcp-client/internal/agent"
	"github.com/acupofespresso/mcp-client/internal/config"
	"github.com/acupofespresso/mcp-client/internal/logging"
	"github.com/acupofespresso/mcp-client/internal/model"
	"github.com/google/uuid"
)

// ToolCaller executes model-requested tool calls against the discovered tools.
type ToolCaller interface {
	Definitions() []agent.ToolDefinition
	Call(ctx context.Context, call agent.ToolCall) (string, error)
}

// Notifier receives human-readable progress notices (tool invocations and
// their results) for display between streamed answer fragments.
type Notifier func(format string, args ...interface{})

// Options configures a Session.
type Options struct {
	Provider agent.ChatProvider
	Tools    ToolCaller
	Config   *config.Config
	// Store receives completed exchanges, best-effort. May be nil.
	Store  model.TranscriptStore
	Logger *logging.Logger
	// OnDelta receives streamed text fragments. May be nil.
	OnDelta agent.StreamHandler
	// Notify receives progress notices. May be nil.
	Notify Notifier
}

// Session is a single-user conversation. History lives in memory only and is
// discarded when the process exits; the transcript store is a write-only
// audit trail.
type Session struct {
	id       string
	provider agent.ChatProvider
	tools    ToolCaller
	cfg      *config.Config
	store    model.TranscriptStore
	logger   *logging.Logger
	onDelta  agent.StreamHandler
	notify   Notifier

	history []agent.Message
}

// NewSession creates a session with a fresh UUID.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Session{
		id:       uuid.NewString(),
		provider: opts.Provider,
		tools:    opts.Tools,
		cfg:      opts.Config,
		store:    opts.Store,
		logger:   logger,
		onDelta:  opts.OnDelta,
		notify:   opts.Notify,
	}
}

// ID returns the session UUID.
func (s *Session) ID() string {
	return s.id
}

// Reset clears the in-memory conversation history.
func (s *Session) Reset() {
	s.history = nil
}

// HistoryLen returns the number of messages in the conversation.
func (s *Session) HistoryLen() int {
	return len(s.history)
}

func (s *Session) notifyf(format string, args ...interface{}) {
	if s.notify != nil {
		s.notify(format, args...)
	}
}

// complete runs one completion round, streaming when enabled.
func (s *Session) complete(ctx context.Context, tools []agent.ToolDefinition) (*agent.Message, error) {
	if s.cfg.Chat.Stream {
		return s.provider.StreamCompletion(ctx, s.cfg.AI.Model, "", s.history, tools, s.onDelta)
	}
	return s.provider.CreateCompletion(ctx, s.cfg.AI.Model, "", s.history, tools)
}

// ProcessQuery sends one user query through the model, executing any tool
// calls it requests, until the model answers with plain text or the tool
// iteration budget is exhausted. The returned exchange carries the final
// answer and the tool-call trace; it is also persisted to the transcript
// store, best-effort.
func (s *Session) ProcessQuery(ctx context.Context, query string) (*model.Exchange, error) {
	ex := &model.Exchange{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Query:     query,
		StartTime: time.Now(),
	}
	logger := s.logger.WithField("exchange_id", ex.ID)

	// On failure the conversation rolls back to its pre-query state so a
	// transport hiccup cannot leave a dangling user message.
	checkpoint := len(s.history)
	s.history = append(s.history, agent.Message{Role: "user", Content: query})

	resp, err := s.runToolLoop(ctx, ex, logger)

	ex.EndTime = time.Now()
	ex.Duration = ex.EndTime.Sub(ex.StartTime).String()

	if err != nil {
		s.history = s.history[:checkpoint]
		ex.Error = err.Error()
		model.PersistAndLogExchange(s.store, ex, logger)
		return ex, err
	}

	s.history = append(s.history, *resp)
	ex.Response = resp.Content
	model.PersistAndLogExchange(s.store, ex, logger)
	return ex, nil
}

// runToolLoop drives completions until the model stops requesting tools.
// The returned message is the final assistant answer, not yet appended to
// the history.
func (s *Session) runToolLoop(ctx context.Context, ex *model.Exchange, logger *logging.Logger) (*agent.Message, error) {
	var tools []agent.ToolDefinition
	if s.tools != nil {
		tools = s.tools.Definitions()
	}

	// No tools discovered: plain completion.
	if len(tools) == 0 {
		logger.Debugf("No tools available, using basic chat completion")
		return s.complete(ctx, nil)
	}

	maxIterations := s.cfg.AI.MaxToolIterations
	for i := 0; i < maxIterations; i++ {
		resp, err := s.complete(ctx, tools)
		if err != nil {
			logger.Errorf("Chat completion failed on iteration %d: %v", i+1, err)
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			logger.Debugf("Query answered after %d iteration(s)", i+1)
			return resp, nil
		}

		// The assistant message carrying the tool calls becomes part of
		// the conversation before any results are appended.
		s.history = append(s.history, *resp)

		for _, call := range resp.ToolCalls {
			s.notifyf("Calling tool %s with input %s", call.Name, call.Arguments)
			logger.Infof("Tool call: %s", call.Name)

			invocation := model.ToolInvocation{
				ID:        call.ID,
				Tool:      call.Name,
				Arguments: call.Arguments,
			}

			out, err := s.tools.Call(ctx, call)
			if err != nil {
				logger.Warnf("Tool call error: %v", err)
				out = "ERROR: " + err.Error()
				invocation.Error = err.Error()
			} else {
				invocation.Result = out
			}
			ex.ToolCalls = append(ex.ToolCalls, invocation)
			s.notifyf("Tool %s returned:\n%s", call.Name, out)

			s.history = append(s.history, agent.Message{
				Role:       "tool",
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}

	logger.Errorf("Query exceeded maximum tool iterations (%d)", maxIterations)
	return nil, fmt.Errorf("tool loop exceeded maximum iterations (%d)", maxIterations)
}
