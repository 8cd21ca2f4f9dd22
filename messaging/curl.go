// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// maskedAuthorization replaces the real Authorization value when a
// curl command is rendered for sharing.
const maskedAuthorization = "Bearer your_access_token"

// ToCurlCommand renders a request as a shell command:
//
//	curl [-X METHOD] [--data '<body>'] [-H 'Key: value' ...] '<url>'
//
// -X is omitted for GET. Headers are emitted in sorted key order. Each
// argument is single-quoted; an argument containing a single quote or a
// backslash is written in ANSI-C form ($'...') with those characters
// escaped, so the shell reconstructs it byte for byte.
//
// With maskAuthorization, the Authorization header value is replaced by
// "Bearer your_access_token" and the token never appears in the output.
func ToCurlCommand(resource string, request Request, maskAuthorization bool) string {
	parts := []string{"curl"}

	method := request.method()
	if method != http.MethodGet {
		parts = append(parts, "-X", method)
	}

	if len(request.Body) > 0 {
		parts = append(parts, "--data", shellQuote(string(request.Body)))
	}

	keys := make([]string, 0, len(request.Header))
	for key := range request.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range request.Header[key] {
			if maskAuthorization && http.CanonicalHeaderKey(key) == "Authorization" {
				value = maskedAuthorization
			}
			parts = append(parts, "-H", shellQuote(key+": "+value))
		}
	}

	parts = append(parts, shellQuote(resource))
	return strings.Join(parts, " ")
}

// shellQuote quotes s as a single shell word.
func shellQuote(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return "'" + s + "'"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
	return "$'" + escaped + "'"
}

// clientPathPattern matches the versioned client API prefix.
var clientPathPattern = regexp.MustCompile(`/_matrix/client/v\d+/(.*)$`)

// Summarize renders a request as a short human-readable line: the
// method followed by the path after /_matrix/client/vN/, or the whole
// URL when the path does not have that prefix.
func Summarize(resource string, request Request) string {
	if match := clientPathPattern.FindStringSubmatch(resource); match != nil {
		return request.method() + " " + match[1]
	}
	return request.method() + " " + resource
}
