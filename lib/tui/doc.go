// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the console's shared terminal styling: the color
// theme used by the network log renderer and the bulk progress view.
package tui
