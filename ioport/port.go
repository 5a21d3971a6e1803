// Package ioport is the machine's one external boundary: a port that takes
// text out and hands lines of player input in. Everything on the other
// side of a Port - a terminal, a test fixture, a channel bridging to a
// Bubble Tea program - is a collaborator outside the core engine.
package ioport

import (
	"bytes"
	"strings"
)

// Port is the abstract I/O contract the machine core is written against.
// TryReadLine must never block: it reports whether a line is ready, not
// wait for one, so the fetch loop can suspend cleanly on sread.
type Port interface {
	Write(text string)
	TryReadLine() (string, bool)
	Flush()
}

// Buffered is a fully synchronous, in-memory Port: output accumulates in a
// buffer and input is drained from a pre-seeded queue. Used by tests and by
// the CLI's -batch mode.
type Buffered struct {
	out   bytes.Buffer
	lines []string
}

// NewBuffered builds a Buffered port pre-seeded with lines, delivered one
// per TryReadLine call in order.
func NewBuffered(lines ...string) *Buffered {
	return &Buffered{lines: append([]string{}, lines...)}
}

func (b *Buffered) Write(text string) {
	b.out.WriteString(text)
}

func (b *Buffered) TryReadLine() (string, bool) {
	if len(b.lines) == 0 {
		return "", false
	}
	line := b.lines[0]
	b.lines = b.lines[1:]
	return line, true
}

// Feed appends another line to the input queue, for callers that discover
// player input after construction (e.g. a batch script read incrementally).
func (b *Buffered) Feed(line string) {
	b.lines = append(b.lines, line)
}

func (b *Buffered) Flush() {}

// Output returns everything written so far.
func (b *Buffered) Output() string {
	return b.out.String()
}

// Transcript returns Output with trailing newlines trimmed from the end of
// the whole text, handy for asserting against expected game text in tests.
func (b *Buffered) Transcript() string {
	return strings.TrimRight(b.out.String(), "\n")
}
