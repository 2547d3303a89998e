// SPDX-License-Identifier: AGPL-3.0-only
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/acupofespresso/mcp-client/internal/errors"
	"github.com/acupofespresso/mcp-client/internal/model"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements model.TranscriptStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveExchange appends a completed exchange to the transcript.
func (s *SQLiteStore) SaveExchange(ex *model.Exchange) error {
	toolCalls := "[]"
	if len(ex.ToolCalls) > 0 {
		data, err := json.Marshal(ex.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCalls = string(data)
	}

	_, err := s.db.Exec(`
		INSERT INTO exchanges (id, session_id, query, response, tool_calls, error, start_time, end_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID,
		ex.SessionID,
		ex.Query,
		ex.Response,
		toolCalls,
		ex.Error,
		ex.StartTime.Format(timeFormat),
		ex.EndTime.Format(timeFormat),
		ex.Duration,
	)
	if err != nil {
		return errors.Internal(fmt.Errorf("insert exchange: %w", err))
	}
	return nil
}

// GetExchanges returns up to limit exchanges for the given session ID, ordered
// by start_time descending (most recent first).
func (s *SQLiteStore) GetExchanges(sessionID string, limit int) ([]*model.Exchange, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, query, response, tool_calls, error, start_time, end_time, duration
		FROM exchanges
		WHERE session_id = ?
		ORDER BY start_time DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []*model.Exchange
	for rows.Next() {
		var ex model.Exchange
		var toolCalls, startStr, endStr string
		if err := rows.Scan(
			&ex.ID, &ex.SessionID, &ex.Query, &ex.Response,
			&toolCalls, &ex.Error, &startStr, &endStr, &ex.Duration,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}
		if toolCalls != "" && toolCalls != "[]" {
			if err := json.Unmarshal([]byte(toolCalls), &ex.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		ex.StartTime, _ = time.Parse(timeFormat, startStr)
		ex.EndTime, _ = time.Parse(timeFormat, endStr)
		exchanges = append(exchanges, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rows: %w", err)
	}

	return exchanges, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
