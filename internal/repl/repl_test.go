// SPDX-License-Identifier: AGPL-3.0-only
package repl

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/acupofespresso/mcp-client/internal/logging"
	"github.com/acupofespresso/mcp-client/internal/model"
)

type fakeSession struct {
	queries   []string
	responses map[string]string
	errs      map[string]error
	resets    int
}

func (s *fakeSession) ProcessQuery(ctx context.Context, query string) (*model.Exchange, error) {
	s.queries = append(s.queries, query)
	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	resp := s.responses[query]
	return &model.Exchange{Query: query, Response: resp}, nil
}

func (s *fakeSession) Reset() { s.resets++ }

func (s *fakeSession) HistoryLen() int { return len(s.queries) * 2 }

func quietLogger() *logging.Logger {
	return logging.New(logging.Options{Output: io.Discard, Level: logging.Fatal})
}

func runLoop(t *testing.T, input string, session *fakeSession, streaming bool) string {
	t.Helper()
	var out strings.Builder
	loop := New(Options{
		In:        strings.NewReader(input),
		Out:       &out,
		Session:   session,
		ToolNames: []string{"fetch", "get_weather"},
		Streaming: streaming,
		Logger:    quietLogger(),
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return out.String()
}

func TestLoopQuitExits(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "quit\n", session, false)

	if !strings.Contains(out, "Goodbye!") {
		t.Errorf("expected goodbye message, got %q", out)
	}
	if len(session.queries) != 0 {
		t.Errorf("quit should not reach the session, got queries %v", session.queries)
	}
}

func TestLoopExitAliases(t *testing.T) {
	for _, input := range []string{"exit", "EXIT", "Quit", "/quit", "/q"} {
		session := &fakeSession{}
		out := runLoop(t, input+"\n", session, false)
		if !strings.Contains(out, "Goodbye!") {
			t.Errorf("input %q: expected goodbye, got %q", input, out)
		}
	}
}

func TestLoopEOFExitsCleanly(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "", session, false)

	if !strings.Contains(out, "Query: ") {
		t.Errorf("expected prompt before EOF, got %q", out)
	}
}

func TestLoopRendersResponse(t *testing.T) {
	session := &fakeSession{responses: map[string]string{"hello": "Hi there!"}}
	out := runLoop(t, "hello\nquit\n", session, false)

	if !strings.Contains(out, "Hi there!") {
		t.Errorf("expected response in output, got %q", out)
	}
	if len(session.queries) != 1 || session.queries[0] != "hello" {
		t.Errorf("unexpected queries: %v", session.queries)
	}
}

func TestLoopStreamingSkipsResponseEcho(t *testing.T) {
	// In streaming mode the session already printed the deltas; the loop
	// must not print the response a second time.
	session := &fakeSession{responses: map[string]string{"hello": "Hi there!"}}
	out := runLoop(t, "hello\nquit\n", session, true)

	if strings.Contains(out, "Hi there!") {
		t.Errorf("streaming loop should not echo the response, got %q", out)
	}
}

func TestLoopErrorContinues(t *testing.T) {
	session := &fakeSession{
		responses: map[string]string{"second": "ok"},
		errs:      map[string]error{"first": errors.New("provider unavailable")},
	}
	out := runLoop(t, "first\nsecond\nquit\n", session, false)

	if !strings.Contains(out, "Error: provider unavailable") {
		t.Errorf("expected error message, got %q", out)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("loop should continue after an error, got %q", out)
	}
	if len(session.queries) != 2 {
		t.Errorf("expected 2 queries, got %v", session.queries)
	}
}

func TestLoopEmptyInputSkipped(t *testing.T) {
	session := &fakeSession{}
	runLoop(t, "\n   \nquit\n", session, false)

	if len(session.queries) != 0 {
		t.Errorf("blank lines should not reach the session, got %v", session.queries)
	}
}

func TestLoopToolsCommand(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "/tools\nquit\n", session, false)

	if !strings.Contains(out, "fetch") || !strings.Contains(out, "get_weather") {
		t.Errorf("expected tool names, got %q", out)
	}
	if len(session.queries) != 0 {
		t.Errorf("commands should not reach the session, got %v", session.queries)
	}
}

func TestLoopClearCommand(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "/clear\nquit\n", session, false)

	if session.resets != 1 {
		t.Errorf("expected 1 reset, got %d", session.resets)
	}
	if !strings.Contains(out, "cleared") {
		t.Errorf("expected clear confirmation, got %q", out)
	}
}

func TestLoopHelpCommand(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "/help\nquit\n", session, false)

	for _, cmd := range []string{"/help", "/tools", "/clear", "/quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing %s: %q", cmd, out)
		}
	}
}

func TestLoopUnknownCommand(t *testing.T) {
	session := &fakeSession{}
	out := runLoop(t, "/bogus\nquit\n", session, false)

	if !strings.Contains(out, "Unknown command") {
		t.Errorf("expected unknown-command message, got %q", out)
	}
	if len(session.queries) != 0 {
		t.Errorf("unknown commands should not reach the session, got %v", session.queries)
	}
}

func TestLoopCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := New(Options{
		In:      strings.NewReader("hello\n"),
		Out:     io.Discard,
		Session: &fakeSession{},
		Logger:  quietLogger(),
	})
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoopBannerWithoutTools(t *testing.T) {
	var out strings.Builder
	loop := New(Options{
		In:      strings.NewReader("quit\n"),
		Out:     &out,
		Session: &fakeSession{},
		Logger:  quietLogger(),
	})
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(out.String(), "No tools available") {
		t.Errorf("expected no-tools banner, got %q", out.String())
	}
}

func TestTypewriterZeroDelayPassthrough(t *testing.T) {
	var out strings.Builder
	tw := NewTypewriter(&out, 0)

	n, err := tw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if n != 5 || out.String() != "hello" {
		t.Errorf("expected passthrough write, got n=%d out=%q", n, out.String())
	}
}

// cappedWriter accepts at most cap bytes, then fails.
type cappedWriter struct {
	cap int
	buf strings.Builder
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	if w.cap <= 0 {
		return 0, errors.New("writer full")
	}
	if len(p) > w.cap {
		p = p[:w.cap]
	}
	w.cap -= len(p)
	w.buf.Write(p)
	return len(p), nil
}

func TestTypewriterReportsPartialWrite(t *testing.T) {
	w := &cappedWriter{cap: 3}
	tw := NewTypewriter(w, time.Nanosecond)

	n, err := tw.Write([]byte("hello"))
	if err == nil {
		t.Fatal("expected error once the writer is full")
	}
	if n != 3 {
		t.Errorf("expected 3 bytes reported written, got %d", n)
	}
	if w.buf.String() != "hel" {
		t.Errorf("expected %q written before the failure, got %q", "hel", w.buf.String())
	}
}

func TestTypewriterWritesAllRunes(t *testing.T) {
	var out strings.Builder
	tw := NewTypewriter(&out, time.Microsecond)

	tw.Print("héllo")
	if out.String() != "héllo" {
		t.Errorf("expected full text, got %q", out.String())
	}
}
