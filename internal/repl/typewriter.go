// SPDX-License-Identifier: AGPL-3.0-only
package repl

import (
	"io"
	"time"
)

// Typewriter writes text rune-by-rune with a fixed pause between runes, so
// streamed model output reads like it is being typed. A zero delay writes
// straight through.
type Typewriter struct {
	out   io.Writer
	delay time.Duration
}

// NewTypewriter creates a Typewriter over out.
func NewTypewriter(out io.Writer, delay time.Duration) *Typewriter {
	return &Typewriter{out: out, delay: delay}
}

// Write implements io.Writer.
func (t *Typewriter) Write(p []byte) (int, error) {
	if t.delay <= 0 {
		return t.out.Write(p)
	}
	written := 0
	for _, r := range string(p) {
		n, err := io.WriteString(t.out, string(r))
		written += n
		if err != nil {
			return written, err
		}
		time.Sleep(t.delay)
	}
	return written, nil
}

// Print writes s through the typewriter, ignoring write errors.
func (t *Typewriter) Print(s string) {
	_, _ = io.WriteString(t, s)
}
