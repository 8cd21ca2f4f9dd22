// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// NewRenderer returns a lipgloss renderer for w. With color false the
// renderer emits plain text regardless of the terminal; otherwise the
// profile is detected from w and the environment (NO_COLOR, TERM, and
// whether w is a terminal).
//
// SetColorProfile is required for the plain case because
// lipgloss.Renderer.ColorProfile re-detects from the environment
// unless a profile was set explicitly.
func NewRenderer(w io.Writer, color bool) *lipgloss.Renderer {
	if !color {
		renderer := lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
		renderer.SetColorProfile(termenv.Ascii)
		return renderer
	}
	return lipgloss.NewRenderer(w, termenv.WithColorCache(true))
}
