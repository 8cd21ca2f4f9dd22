// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netlog

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/matrix-console/lib/tui"
)

// RenderOptions controls Render output.
type RenderOptions struct {
	// Renderer styles the output. If nil, one is created for the
	// destination writer with color detection.
	Renderer *lipgloss.Renderer
	// Theme supplies colors. If nil, tui.DefaultTheme is used.
	Theme *tui.Theme
	// Width truncates each line to this many cells. Zero means no limit.
	Width int
	// Truncated adds a note that older records were dropped.
	Truncated bool
	// ShowTiming appends the round-trip time of finished requests.
	ShowTiming bool
}

// Render writes one line per record:
//
//	#12  403    POST rooms/!r%3Ax/invite  M_FORBIDDEN: You are not invited
//
// Lines are styled with the theme's status colors and cut to Width
// cells without splitting escape sequences.
func Render(w io.Writer, records []Record, options RenderOptions) error {
	renderer := options.Renderer
	if renderer == nil {
		renderer = tui.NewRenderer(w, true)
	}
	theme := tui.DefaultTheme
	if options.Theme != nil {
		theme = *options.Theme
	}
	faint := renderer.NewStyle().Foreground(theme.FaintText)
	normal := renderer.NewStyle().Foreground(theme.NormalText)

	var output strings.Builder
	if options.Truncated {
		output.WriteString(fit(faint.Render("(older requests were dropped from the log)"), options.Width))
		output.WriteByte('\n')
	}

	idWidth := 1
	if len(records) > 0 {
		idWidth = len(fmt.Sprint(records[len(records)-1].ID))
	}

	for _, record := range records {
		label := record.StatusLabel()
		labelStyle := renderer.NewStyle().Foreground(theme.StatusColor(label))

		var line strings.Builder
		line.WriteString(faint.Render(fmt.Sprintf("#%-*d", idWidth, record.ID)))
		line.WriteString("  ")
		line.WriteString(labelStyle.Render(fmt.Sprintf("%-5s", label)))
		line.WriteString("  ")
		line.WriteString(normal.Render(record.Summary()))

		if outcome := describeOutcome(record); outcome != "" {
			line.WriteString("  ")
			line.WriteString(labelStyle.Render(outcome))
		}
		if options.ShowTiming && record.Finished {
			line.WriteString("  ")
			line.WriteString(faint.Render(record.Duration().Round(time.Millisecond).String()))
		}

		output.WriteString(fit(line.String(), options.Width))
		output.WriteByte('\n')
	}

	_, err := io.WriteString(w, output.String())
	return err
}

func describeOutcome(record Record) string {
	switch {
	case record.Errcode != "" && record.Error != "":
		return record.Errcode + ": " + record.Error
	case record.Errcode != "":
		return record.Errcode
	case record.Error != "":
		return record.Error
	}
	return ""
}

// fit cuts a styled line to width cells.
func fit(line string, width int) string {
	if width <= 0 || ansi.StringWidth(line) <= width {
		return line
	}
	return ansi.Truncate(line, width, "…")
}
