// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"net/url"
	"strings"

	"github.com/bureau-foundation/matrix-console/lib/identity"
)

// masqueradeParameter is the query parameter an Application Service
// uses to act as another user.
const masqueradeParameter = "user_id"

// Authenticate applies an identity's credentials to a bare request and
// returns the final URL and request. It is a pure function: the
// caller's request is never modified, and nothing is sent.
//
// When the identity masquerades, the user_id query parameter is added
// or overwritten. When it has an access token, an "Authorization:
// Bearer" header is added or overwritten; without a token the request
// stays anonymous. Other headers are preserved. The returned header map
// is never nil.
//
// The URL is edited by string splitting rather than through url.URL:
// already-encoded path segments (room aliases, event IDs) and every
// query pair other than user_id are passed through byte for byte.
func Authenticate(who identity.Identity, resource string, request Request) (string, Request) {
	final := request.Clone()

	if who.MasqueradeAs != "" {
		resource = setQueryParameter(resource, masqueradeParameter, who.MasqueradeAs)
	}

	if who.AccessToken != "" {
		final.Header.Set("Authorization", "Bearer "+who.AccessToken)
	}

	return resource, final
}

// setQueryParameter drops every key pair from resource's query string
// and appends key=value. The remaining pairs keep their order and
// encoding. The path and fragment are left untouched.
func setQueryParameter(resource, key, value string) string {
	base, fragment, hasFragment := strings.Cut(resource, "#")
	path, rawQuery, _ := strings.Cut(base, "?")

	var pairs []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(name); name == key || (err == nil && decoded == key) {
			continue
		}
		pairs = append(pairs, pair)
	}
	pairs = append(pairs, key+"="+url.QueryEscape(value))

	result := path + "?" + strings.Join(pairs, "&")
	if hasFragment {
		result += "#" + fragment
	}
	return result
}
