// SPDX-License-Identifier: AGPL-3.0-only
package model

import "time"

// ToolInvocation records a single tool call made while answering a query.
type ToolInvocation struct {
	ID        string `json:"id"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Exchange is one completed query/answer round trip, including any tool calls
// the model made along the way. Exchanges are written to the transcript store
// as an audit trail; they are never read back into the model's context.
type Exchange struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Query     string           `json:"query"`
	Response  string           `json:"response"`
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	Error     string           `json:"error,omitempty"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  string           `json:"duration"`
}

// TranscriptStore persists completed exchanges.
type TranscriptStore interface {
	// SaveExchange appends an exchange to the transcript.
	SaveExchange(ex *Exchange) error
	// GetExchanges returns up to limit exchanges for the session, most
	// recent first.
	GetExchanges(sessionID string, limit int) ([]*Exchange, error)
	// Close releases the underlying storage.
	Close() error
}
