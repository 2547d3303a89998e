// SPDX-License-Identifier: AGPL-3.0-only

// Package repl implements the interactive query loop: it reads queries from
// the terminal, hands them to a chat session and renders the responses.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/acupofespresso/mcp-client/internal/logging"
	"github.com/acupofespresso/mcp-client/internal/model"
)

// QuerySession is the part of a chat session the loop drives.
type QuerySession interface {
	ProcessQuery(ctx context.Context, query string) (*model.Exchange, error)
	Reset()
	HistoryLen() int
}

// Options configures a Loop.
type Options struct {
	In        io.Reader
	Out       io.Writer
	Session   QuerySession
	ToolNames []string
	// Streaming reports whether the session prints deltas itself; when
	// false the loop renders the final response through the Typewriter.
	Streaming  bool
	Typewriter *Typewriter
	Logger     *logging.Logger
}

// Loop reads queries line by line until quit or EOF. Each iteration is
// independent: an error from one query is printed and the loop continues.
type Loop struct {
	in      io.Reader
	out     io.Writer
	session QuerySession
	tools   []string
	stream  bool
	tw      *Typewriter
	logger  *logging.Logger
}

// New creates a Loop from opts.
func New(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	tw := opts.Typewriter
	if tw == nil {
		tw = NewTypewriter(opts.Out, 0)
	}
	return &Loop{
		in:      opts.In,
		out:     opts.Out,
		session: opts.Session,
		tools:   opts.ToolNames,
		stream:  opts.Streaming,
		tw:      tw,
		logger:  logger,
	}
}

// Run executes the loop until the user quits, input reaches EOF or ctx is
// canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.banner()

	scanner := bufio.NewScanner(l.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(l.out, "\nQuery: ")
		if !scanner.Scan() {
			fmt.Fprintln(l.out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if l.handleCommand(query) {
			continue
		}
		if isQuit(query) {
			fmt.Fprintln(l.out, "Goodbye!")
			return nil
		}

		l.runQuery(ctx, query)
	}
}

// runQuery processes a single query and prints either the streamed answer's
// trailing newline or the full response. All errors are reported inline.
func (l *Loop) runQuery(ctx context.Context, query string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("panic while processing query: %v", r)
			fmt.Fprintf(l.out, "\nError: %v\n", r)
		}
	}()

	ex, err := l.session.ProcessQuery(ctx, query)
	if err != nil {
		fmt.Fprintf(l.out, "\nError: %v\n", err)
		return
	}
	if l.stream {
		fmt.Fprintln(l.out)
		return
	}
	l.tw.Print("\n" + ex.Response + "\n")
}

func (l *Loop) banner() {
	fmt.Fprintln(l.out, "MCP Client Started!")
	if len(l.tools) > 0 {
		fmt.Fprintf(l.out, "Connected with %d tools: %s\n", len(l.tools), strings.Join(l.tools, ", "))
	} else {
		fmt.Fprintln(l.out, "No tools available; queries go straight to the model.")
	}
	fmt.Fprintln(l.out, "Type your queries, or 'quit' to exit. '/help' lists commands.")
}

// handleCommand runs slash commands. It returns true when the input was a
// command, quit commands excepted.
func (l *Loop) handleCommand(input string) bool {
	if !strings.HasPrefix(input, "/") {
		return false
	}
	switch strings.ToLower(input) {
	case "/help":
		fmt.Fprintln(l.out, "Commands:")
		fmt.Fprintln(l.out, "  /help   show this help")
		fmt.Fprintln(l.out, "  /tools  list available tools")
		fmt.Fprintln(l.out, "  /clear  clear conversation history")
		fmt.Fprintln(l.out, "  /quit   exit (also: quit, exit)")
	case "/tools":
		if len(l.tools) == 0 {
			fmt.Fprintln(l.out, "No tools available.")
			break
		}
		for _, name := range l.tools {
			fmt.Fprintf(l.out, "  %s\n", name)
		}
	case "/clear":
		l.session.Reset()
		fmt.Fprintln(l.out, "Conversation history cleared.")
	case "/quit", "/exit", "/q":
		return false
	default:
		fmt.Fprintf(l.out, "Unknown command %q; try /help.\n", input)
	}
	return true
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "/quit", "/exit", "/q":
		return true
	}
	return false
}
