// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/matrix-console/lib/bulk"
	"github.com/bureau-foundation/matrix-console/lib/tui"
)

func newTestProgressModel(total int) bulkProgressModel {
	return newBulkProgressModel("Kick 3 users", total, tui.DefaultTheme, tui.NewRenderer(io.Discard, false))
}

func TestBulkProgressModel_View(t *testing.T) {
	model := newTestProgressModel(3)

	updated, command := model.Update(bulkStateMsg(bulk.State[string]{
		Total:      3,
		Progress:   1,
		Current:    "@carol:x",
		HasCurrent: true,
		Running:    true,
		Errors:     []bulk.ItemError[string]{{Index: 0, Item: "@bob:x", Message: "M_FORBIDDEN"}},
	}))
	if command != nil {
		t.Error("state update returned a command")
	}

	view := updated.View()
	for _, want := range []string{"Kick 3 users", "1/3", "1 failed", "→ @carol:x"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if !strings.Contains(view, "33%") {
		t.Errorf("view does not show the percentage:\n%s", view)
	}
}

func TestBulkProgressModel_Finished(t *testing.T) {
	model := newTestProgressModel(1)
	updated, _ := model.Update(bulkStateMsg(bulk.State[string]{Total: 1, Current: "@a:x", HasCurrent: true}))

	updated, command := updated.Update(bulkFinishedMsg{})
	if command == nil {
		t.Fatal("finish returned no command")
	}
	if _, ok := command().(tea.QuitMsg); !ok {
		t.Error("finish command does not quit")
	}
	if strings.Contains(updated.View(), "→") {
		t.Errorf("finished view still shows the current item:\n%s", updated.View())
	}
}

func TestBulkProgressModel_WindowSize(t *testing.T) {
	model := newTestProgressModel(1)
	tests := []struct {
		width int
		want  int
	}{
		{width: 100, want: 60},
		{width: 50, want: 30},
		{width: 15, want: 10},
	}
	for _, test := range tests {
		updated, _ := model.Update(tea.WindowSizeMsg{Width: test.width, Height: 24})
		if got := updated.(bulkProgressModel).bar.Width; got != test.want {
			t.Errorf("width %d: bar width = %d, want %d", test.width, got, test.want)
		}
	}
}

func TestBulkProgressModel_EmptyRunIsComplete(t *testing.T) {
	if percent := newTestProgressModel(0).percent(); percent != 1 {
		t.Errorf("percent() = %v, want 1", percent)
	}
}

func TestRunWithProgress(t *testing.T) {
	runner := bulk.NewRunner[string](bulk.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	action := func(_ context.Context, item string) error {
		if item == "@bob:x" {
			return errors.New("refused")
		}
		return nil
	}
	final, err := runWithProgress(context.Background(), runner, []string{"@alice:x", "@bob:x"}, action,
		newTestProgressModel(2), &output, logger)
	if err != nil {
		t.Fatalf("runWithProgress: %v", err)
	}
	if final.Progress != 2 || len(final.Errors) != 1 || final.Errors[0].Item != "@bob:x" {
		t.Errorf("final state = %+v", final)
	}
	if final.Running {
		t.Error("final state still running")
	}
}
