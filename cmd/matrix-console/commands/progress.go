// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/matrix-console/lib/bulk"
	"github.com/bureau-foundation/matrix-console/lib/tui"
)

// bulkStateMsg carries a runner state into the progress view.
type bulkStateMsg bulk.State[string]

// bulkFinishedMsg ends the progress view.
type bulkFinishedMsg struct{}

// bulkProgressModel is the live view of a bulk run: a progress bar, the
// item in flight, and the failure count.
type bulkProgressModel struct {
	title    string
	bar      progress.Model
	state    bulk.State[string]
	finished bool

	titleStyle lipgloss.Style
	faintStyle lipgloss.Style
	errorStyle lipgloss.Style
}

func newBulkProgressModel(title string, total int, theme tui.Theme, renderer *lipgloss.Renderer) bulkProgressModel {
	return bulkProgressModel{
		title: title,
		bar: progress.New(
			progress.WithGradient(string(theme.ProgressStart), string(theme.ProgressEnd)),
			progress.WithWidth(40),
		),
		state:      bulk.State[string]{Total: total},
		titleStyle: renderer.NewStyle().Foreground(theme.HeaderForeground).Bold(true),
		faintStyle: renderer.NewStyle().Foreground(theme.FaintText),
		errorStyle: renderer.NewStyle().Foreground(theme.StatusClientError),
	}
}

func (m bulkProgressModel) Init() tea.Cmd {
	return nil
}

func (m bulkProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bulkStateMsg:
		m.state = bulk.State[string](msg)
		return m, nil
	case bulkFinishedMsg:
		m.finished = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil
	}
	return m, nil
}

func (m bulkProgressModel) percent() float64 {
	if m.state.Total == 0 {
		return 1
	}
	return float64(m.state.Progress) / float64(m.state.Total)
}

func (m bulkProgressModel) View() string {
	var view strings.Builder
	view.WriteString(m.titleStyle.Render(m.title))
	view.WriteByte('\n')
	view.WriteString(m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&view, "  %d/%d", m.state.Progress, m.state.Total)
	if failed := len(m.state.Errors); failed > 0 {
		view.WriteString("  ")
		view.WriteString(m.errorStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	view.WriteByte('\n')
	if m.state.HasCurrent && !m.finished {
		view.WriteString(m.faintStyle.Render("→ " + m.state.Current))
		view.WriteByte('\n')
	}
	return view.String()
}

// runWithProgress runs the bulk action under a live progress view on
// output. The view ends when the run does or when ctx ends.
func runWithProgress(ctx context.Context, runner *bulk.Runner[string], items []string, action bulk.Action[string],
	model bulkProgressModel, output io.Writer, logger *slog.Logger) (bulk.State[string], error) {

	program := tea.NewProgram(model,
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)

	unsubscribe := runner.Subscribe(func(state bulk.State[string]) {
		program.Send(bulkStateMsg(state))
	})
	defer unsubscribe()

	type outcome struct {
		state bulk.State[string]
		err   error
	}
	outcomes := make(chan outcome, 1)
	go func() {
		state, err := runner.Run(ctx, items, action)
		outcomes <- outcome{state, err}
		program.Send(bulkFinishedMsg{})
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Warn("progress view failed", "error", err)
	}
	result := <-outcomes
	return result.state, result.err
}
