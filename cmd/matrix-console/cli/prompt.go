// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bureau-foundation/matrix-console/lib/tui"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// Prompter talks to the operator over the command's streams. It is the
// console's messaging.Confirmer and messaging.Alerter. Prompts and
// alerts go to the error stream so the output stream carries only
// results.
type Prompter struct {
	rawIn     io.Reader
	reader    *bufio.Reader
	out       io.Writer
	alert     lipgloss.Style
	prompt    lipgloss.Style
	assumeYes bool

	// pending is the read still in flight after a Confirm gave up
	// waiting. The next read takes over its result rather than racing
	// it on the same reader.
	mu      sync.Mutex
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

var (
	_ messaging.Confirmer = (*Prompter)(nil)
	_ messaging.Alerter   = (*Prompter)(nil)
)

// NewPrompter creates a Prompter. With assumeYes every confirmation is
// approved without reading input.
func NewPrompter(streams Streams, renderer *lipgloss.Renderer, theme tui.Theme, assumeYes bool) *Prompter {
	return &Prompter{
		rawIn:     streams.In,
		reader:    bufio.NewReader(streams.In),
		out:       streams.Err,
		alert:     renderer.NewStyle().Foreground(theme.StatusClientError).Bold(true),
		prompt:    renderer.NewStyle().Foreground(theme.HeaderForeground),
		assumeYes: assumeYes,
	}
}

// Confirm writes prompt and reads a y/N answer. End of input without an
// answer declines.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if p.assumeYes {
		fmt.Fprintf(p.out, "%s yes (--yes)\n", p.prompt.Render(prompt))
		return true, nil
	}
	fmt.Fprintf(p.out, "%s [y/N] ", p.prompt.Render(prompt))

	line, err := p.readLine(ctx)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return false, nil
		}
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Alert writes message as an error line.
func (p *Prompter) Alert(_ context.Context, message string) {
	fmt.Fprintln(p.out, p.alert.Render("error: ")+message)
}

// ReadPassword prompts for a secret. On a terminal the input is not
// echoed; otherwise one line is read from the input stream.
func (p *Prompter) ReadPassword(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, p.prompt.Render(prompt))
	if file, ok := p.rawIn.(fder); ok && term.IsTerminal(int(file.Fd())) {
		password, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(password), nil
	}

	line, err := p.readLine(ctx)
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readLine reads one line, or gives up when ctx ends. A read abandoned
// by ctx keeps running and its line goes to the next caller.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.pending == nil {
		results := make(chan lineResult, 1)
		p.pending = results
		go func() {
			line, err := p.reader.ReadString('\n')
			results <- lineResult{line: line, err: err}
		}()
	}
	pending := p.pending
	p.mu.Unlock()

	select {
	case result := <-pending:
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return result.line, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
