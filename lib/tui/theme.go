// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the console's terminal output.
// Colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility, except the progress gradient.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Request outcome colors, keyed by the network log's status label.
	StatusSuccess     lipgloss.Color // 2xx
	StatusRedirect    lipgloss.Color // 3xx
	StatusClientError lipgloss.Color // 4xx
	StatusServerError lipgloss.Color // 5xx
	StatusTransport   lipgloss.Color // NET
	StatusNotJSON     lipgloss.Color // JSON?
	StatusDryRun      lipgloss.Color // DRY
	StatusPending     lipgloss.Color // ...

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Progress bar gradient ends. Hex colors, since the gradient is
	// blended in RGB.
	ProgressStart lipgloss.Color
	ProgressEnd   lipgloss.Color
}

// StatusColor returns the color for a network-log status label: a
// three-digit HTTP status, or one of NET, JSON?, DRY, and "...".
// Unrecognized labels get FaintText.
func (theme Theme) StatusColor(label string) lipgloss.Color {
	switch label {
	case "NET":
		return theme.StatusTransport
	case "JSON?":
		return theme.StatusNotJSON
	case "DRY":
		return theme.StatusDryRun
	case "...":
		return theme.StatusPending
	}
	if len(label) != 3 {
		return theme.FaintText
	}
	switch label[0] {
	case '2':
		return theme.StatusSuccess
	case '3':
		return theme.StatusRedirect
	case '4':
		return theme.StatusClientError
	case '5':
		return theme.StatusServerError
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	StatusSuccess:     lipgloss.Color("114"), // green
	StatusRedirect:    lipgloss.Color("75"),  // blue
	StatusClientError: lipgloss.Color("220"), // amber
	StatusServerError: lipgloss.Color("196"), // red
	StatusTransport:   lipgloss.Color("196"), // red
	StatusNotJSON:     lipgloss.Color("208"), // orange
	StatusDryRun:      lipgloss.Color("141"), // light purple
	StatusPending:     lipgloss.Color("241"), // dim gray

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ProgressStart: lipgloss.Color("#5FAFFF"), // 75 as hex
	ProgressEnd:   lipgloss.Color("#87D787"), // 114 as hex
}
