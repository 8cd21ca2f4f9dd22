// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"fmt"
	"strings"
)

// UnresolvedVariableError reports a !{key} placeholder with no value.
type UnresolvedVariableError struct {
	Key      string
	Template string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("messaging: no value for !{%s} in %q", e.Key, e.Template)
}

// FillInVariables replaces every !{key} placeholder in template with
// EncodeURIComponent(variables[key]). Placeholders are resolved one at
// a time, left to right; substituted text is never rescanned, so a
// value containing "!{" is inserted literally (encoded). A placeholder
// whose key has no entry in variables is an error: the template is
// never returned with a placeholder left in it. An empty value is a
// value. A "!{" with no closing brace is ordinary text.
func FillInVariables(template string, variables map[string]string) (string, error) {
	var result strings.Builder
	result.Grow(len(template))

	remaining := template
	for {
		start := strings.Index(remaining, "!{")
		if start < 0 {
			break
		}
		end := strings.IndexByte(remaining[start+2:], '}')
		if end < 0 {
			break
		}
		key := remaining[start+2 : start+2+end]
		value, ok := variables[key]
		if !ok {
			return "", &UnresolvedVariableError{Key: key, Template: template}
		}
		result.WriteString(remaining[:start])
		result.WriteString(EncodeURIComponent(value))
		remaining = remaining[start+2+end+1:]
	}
	result.WriteString(remaining)
	return result.String(), nil
}

// TemplateVariables returns the distinct placeholder keys in template,
// in order of first appearance.
func TemplateVariables(template string) []string {
	var keys []string
	seen := make(map[string]bool)
	remaining := template
	for {
		start := strings.Index(remaining, "!{")
		if start < 0 {
			return keys
		}
		end := strings.IndexByte(remaining[start+2:], '}')
		if end < 0 {
			return keys
		}
		key := remaining[start+2 : start+2+end]
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		remaining = remaining[start+2+end+1:]
	}
}

// EncodeURIComponent percent-encodes s the way JavaScript's
// encodeURIComponent does: every byte of the UTF-8 encoding is escaped
// except ASCII letters, digits, and - _ . ! ~ * ' ( ). Matrix
// identifiers are therefore fully encoded ("!room:server" becomes
// "!room%3Aserver", "@user:server" becomes "%40user%3Aserver").
//
// net/url has no equivalent: PathEscape leaves ':' '@' '&' '=' '+' '$'
// ',' ';' unescaped and QueryEscape turns spaces into '+' and escapes
// '!' '*' '\'' '(' ')'.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var result strings.Builder
	result.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if uriComponentSafe(c) {
			result.WriteByte(c)
			continue
		}
		result.WriteByte('%')
		result.WriteByte(hex[c>>4])
		result.WriteByte(hex[c&0x0f])
	}
	return result.String()
}

func uriComponentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
