// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O helpers for the console's request
// pipeline.
//
// ReadResponse bounds every response body read at MaxResponseSize so a
// misbehaving homeserver cannot exhaust memory. Snippet produces short,
// printable excerpts of bodies for error messages. ClassifyTransportError
// gives transport failures (the errors net/http returns before any
// response exists) a short stable label for logs and status columns.
package netutil

import (
	"io"
	"strings"
	"unicode/utf8"
)

// MaxResponseSize is the bound on JSON API response body reads: 64 MB.
// Admin API listings (room lists, user lists) are the largest responses
// the console handles and are orders of magnitude smaller.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. Use
// instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// Snippet returns at most limit bytes of body as a single-line string,
// cut on a rune boundary, with "..." appended when truncated. Control
// characters are replaced by spaces so the result is safe to embed in a
// log line.
func Snippet(body []byte, limit int) string {
	truncated := false
	if limit >= 0 && len(body) > limit {
		body = body[:limit]
		for len(body) > 0 && !utf8.Valid(body) {
			body = body[:len(body)-1]
		}
		truncated = true
	}

	text := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, string(body))

	if truncated {
		return text + "..."
	}
	return text
}
